package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/cli/config"
	httpctrl "github.com/secmon-lab/otomo/pkg/controller/http"
	"github.com/secmon-lab/otomo/pkg/usecase"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var slackCfg config.Slack
	var sentryCfg config.Sentry
	var storageCfg config.Storage
	var assistantCfg config.Assistant

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("OTOMO_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, assistantCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP server with the Slack webhook",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := sentryCfg.Configure(c.Version); err != nil {
				return goerr.Wrap(err, "failed to configure sentry")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure LLM client")
			}

			behavior, err := assistantCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load assistant configuration")
			}

			uc, err := usecase.New(repo, llmClient, usecase.WithAssistantConfig(behavior))
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}

			var httpOpts []httpctrl.Options
			if slackCfg.IsConfigured() {
				slackSvc, err := slackCfg.Configure()
				if err != nil {
					return goerr.Wrap(err, "failed to initialize slack service")
				}

				mediaStore, err := storageCfg.Configure(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize media store")
				}

				handler := httpctrl.NewSlackWebhookHandler(uc, slackSvc, mediaStore)
				httpOpts = append(httpOpts, httpctrl.WithSlackWebhook(handler, slackCfg.SigningSecret()))
				logging.Default().Info("Slack webhook handler enabled")
			} else {
				logging.Default().Warn("Slack is not configured, only /health is served")
			}

			httpHandler, err := httpctrl.New(httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
