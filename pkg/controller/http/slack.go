package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/service/mediastore"
	slacksvc "github.com/secmon-lab/otomo/pkg/service/slack"
	"github.com/secmon-lab/otomo/pkg/usecase"
	"github.com/secmon-lab/otomo/pkg/utils/async"
	"github.com/secmon-lab/otomo/pkg/utils/errutil"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
	"github.com/slack-go/slack/slackevents"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const slackBodyKey contextKey = "slack_body"

// replyTurnFailed is all the user sees when a turn fails internally
const replyTurnFailed = "Sorry, something went wrong on my side. Please try again in a moment."

// verifySlackSignature verifies the Slack request signature
func verifySlackSignature(signingSecret, timestamp, signature string, body []byte) error {
	if timestamp == "" {
		return goerr.New("missing timestamp")
	}
	if signature == "" {
		return goerr.New("missing signature")
	}

	// Reject old timestamps to prevent replay attacks
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp")
	}
	now := time.Now().Unix()
	if now-ts > 60*5 {
		return goerr.New("timestamp too old", goerr.V("timestamp", timestamp), goerr.V("now", now))
	}

	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	if _, err := mac.Write([]byte(baseString)); err != nil {
		return goerr.Wrap(err, "failed to compute HMAC")
	}
	expectedSignature := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		return goerr.New("signature mismatch")
	}

	return nil
}

// SlackSignatureMiddleware creates a middleware that verifies Slack request
// signatures
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}
			defer func() {
				if err := r.Body.Close(); err != nil {
					logging.From(ctx).Error("failed to close request body", "error", err)
				}
			}()

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")

			if err := verifySlackSignature(signingSecret, timestamp, signature, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, slackBodyKey, body)
			r.Body = io.NopCloser(bytes.NewBuffer(body))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SlackWebhookHandler handles Slack Events API webhook requests and drives
// the assistant's turn handling
type SlackWebhookHandler struct {
	uc         *usecase.UseCases
	slackSvc   slacksvc.Service
	mediaStore mediastore.Store
}

// NewSlackWebhookHandler creates a new Slack webhook handler. mediaStore may
// be nil; file attachments are then ignored.
func NewSlackWebhookHandler(uc *usecase.UseCases, slackSvc slacksvc.Service, mediaStore mediastore.Store) *SlackWebhookHandler {
	return &SlackWebhookHandler{
		uc:         uc,
		slackSvc:   slackSvc,
		mediaStore: mediaStore,
	}
}

// ServeHTTP handles Slack webhook requests
func (h *SlackWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// body already verified by the signature middleware
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge.Challenge)); err != nil {
			logging.From(ctx).Error("failed to write challenge response", "error", err)
		}
		return

	case slackevents.CallbackEvent:
		// Respond within Slack's 3-second window; the turn runs async
		w.WriteHeader(http.StatusOK)

		async.Dispatch(ctx, func(ctx context.Context) error {
			return h.handleCallback(ctx, &event)
		})

	default:
		logging.From(ctx).Warn("unknown slack event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *SlackWebhookHandler) handleCallback(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		logging.From(ctx).Info("ignoring non-message event", "type", event.InnerEvent.Type)
		return nil
	}

	// never answer our own or other bots' messages
	if ev.BotID != "" || ev.SubType == "bot_message" {
		return nil
	}
	if ev.User == "" || ev.Channel == "" {
		return nil
	}

	msg := &model.IncomingMessage{
		ChatID: types.ChatID(ev.Channel),
		UserID: types.UserID(ev.User),
		Text:   ev.Text,
	}

	if media := h.storeAttachment(ctx, ev); media != nil {
		msg.Media = media
	}

	reply, err := h.uc.HandleTurn(ctx, msg)
	if err != nil {
		// the user still gets an answer; the detail stays in the log
		if _, postErr := h.slackSvc.PostMessage(ctx, ev.Channel, replyTurnFailed); postErr != nil {
			logging.From(ctx).Warn("failed to post failure notice",
				"error", postErr.Error(), "channel", ev.Channel)
		}
		return goerr.Wrap(err, "failed to handle turn", goerr.V("channel", ev.Channel))
	}

	if _, err := h.slackSvc.PostMessage(ctx, ev.Channel, reply.Text); err != nil {
		return goerr.Wrap(err, "failed to post reply", goerr.V("channel", ev.Channel))
	}

	return nil
}

// storeAttachment downloads the first shared file into the media store and
// returns its reference. Failures degrade to a text-only turn.
func (h *SlackWebhookHandler) storeAttachment(ctx context.Context, ev *slackevents.MessageEvent) *model.MediaRef {
	if h.mediaStore == nil || ev.Message == nil || len(ev.Message.Files) == 0 {
		return nil
	}

	file := ev.Message.Files[0]
	if file.URLPrivateDownload == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := h.slackSvc.DownloadFile(ctx, file.URLPrivateDownload, &buf); err != nil {
		logging.From(ctx).Warn("failed to download shared file", "error", err.Error(), "file", file.Name)
		return nil
	}

	path, err := h.mediaStore.Put(ctx, types.ChatID(ev.Channel), file.Name, &buf)
	if err != nil {
		logging.From(ctx).Warn("failed to store shared file", "error", err.Error(), "file", file.Name)
		return nil
	}

	return &model.MediaRef{
		Type: mediaTypeOf(file.Mimetype),
		Path: path,
	}
}

func mediaTypeOf(mimetype string) types.MediaType {
	switch {
	case strings.HasPrefix(mimetype, "image/"):
		return types.MediaPhoto
	case strings.HasPrefix(mimetype, "audio/"):
		return types.MediaVoice
	default:
		return types.MediaDocument
	}
}
