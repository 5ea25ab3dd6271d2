package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/cli/config"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/usecase"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var userID string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var assistantCfg config.Assistant

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "User ID for the local session",
			Value:       "local",
			Sources:     cli.EnvVars("OTOMO_CHAT_USER_ID"),
			Destination: &userID,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, assistantCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Talk to the assistant from the terminal",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// default to the in-memory backend unless firestore was asked for
			if !c.IsSet("repository-backend") && !c.IsSet("firestore-project-id") {
				logging.Default().Info("No repository configured, using in-memory backend")
				repoCfg.UseMemoryBackend()
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

			return runChatLoop(ctx, uc, types.UserID(userID), os.Stdin, os.Stdout)
		},
	}
}

func runChatLoop(ctx context.Context, uc *usecase.UseCases, userID types.UserID, in io.Reader, out io.Writer) error {
	promptColor := color.New(color.FgCyan, color.Bold)
	replyColor := color.New(color.FgGreen)
	errColor := color.New(color.FgRed)

	fmt.Fprintln(out, "Type a message, or 'exit' to quit.")

	chatID := types.ChatID("terminal-" + string(userID))
	scanner := bufio.NewScanner(in)

	for {
		promptColor.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		reply, err := uc.HandleTurn(ctx, &model.IncomingMessage{
			ChatID: chatID,
			UserID: userID,
			Text:   text,
		})
		if err != nil {
			// the raw error carries internals; log it and keep the reply generic
			logging.From(ctx).Error("turn failed", "error", err.Error())
			errColor.Fprintln(out, "otomo> Sorry, something went wrong. Please try again.")
			continue
		}

		replyColor.Fprintf(out, "otomo> %s\n", reply.Text)
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read input")
	}
	return nil
}
