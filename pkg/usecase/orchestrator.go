package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// HandleTurn processes one inbound message and returns the assistant's
// reply. Turns within a chat are serialized; the per-chat session is loaded,
// advanced through the dialog state machine, and persisted before returning.
func (uc *UseCases) HandleTurn(ctx context.Context, msg *model.IncomingMessage) (*model.Reply, error) {
	if err := validateMessage(msg); err != nil {
		return nil, err
	}

	unlock := uc.lockChat(msg.ChatID)
	defer unlock()

	logger := logging.From(ctx).With("chat_id", msg.ChatID, "user_id", msg.UserID)
	ctx = logging.With(ctx, logger)

	if uc.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.TurnTimeout)
		defer cancel()
	}

	session, err := uc.loadSession(ctx, msg)
	if err != nil {
		return nil, err
	}

	expired := uc.expirePending(ctx, session)

	session.AppendTurn(model.RoleUser, msg.Text, uc.cfg.MaxHistoryTurns)

	reply, err := uc.advanceTurn(ctx, session, msg)
	if err != nil {
		return nil, err
	}

	if expired {
		reply.Text = replyExpiredNotice + reply.Text
	}

	session.AppendTurn(model.RoleAssistant, reply.Text, uc.cfg.MaxHistoryTurns)
	if err := uc.repo.Session().Put(ctx, session); err != nil {
		return nil, goerr.Wrap(err, "failed to persist session")
	}

	return reply, nil
}

func validateMessage(msg *model.IncomingMessage) error {
	if msg == nil {
		return goerr.Wrap(ErrInvalidMessage, "message is nil")
	}
	if err := msg.ChatID.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidMessage, "invalid chat ID")
	}
	if err := msg.UserID.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidMessage, "invalid user ID")
	}
	if strings.TrimSpace(msg.Text) == "" && msg.Media == nil {
		return goerr.Wrap(ErrInvalidMessage, "message has no content")
	}
	return nil
}

func (uc *UseCases) loadSession(ctx context.Context, msg *model.IncomingMessage) (*model.ConversationSession, error) {
	session, err := uc.repo.Session().Get(ctx, msg.ChatID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session")
	}
	if session == nil {
		session = model.NewConversationSession(msg.ChatID, msg.UserID)
	}
	session.State = session.State.Normalize()
	return session, nil
}

// expirePending drops a pending dialog the user walked away from. The
// current message is then handled as a fresh request.
func (uc *UseCases) expirePending(ctx context.Context, session *model.ConversationSession) bool {
	if session.Pending == nil {
		return false
	}
	if uc.now().Sub(session.Pending.CreatedAt) <= uc.cfg.PendingTTL {
		return false
	}

	logging.From(ctx).Info("pending dialog expired",
		"tool", session.Pending.Tool, "kind", session.Pending.Kind)
	session.ClearPending()
	return true
}

// advanceTurn runs one step of the dialog state machine
func (uc *UseCases) advanceTurn(ctx context.Context, session *model.ConversationSession, msg *model.IncomingMessage) (*model.Reply, error) {
	logger := logging.From(ctx)

	classification := uc.classify(ctx, session, msg.Text)
	it := classification.Intent.Normalize()
	confident := classification.Confidence >= uc.cfg.ConfidenceThreshold

	logger.Info("classified turn",
		"intent", it, "confidence", classification.Confidence, "state", session.State)

	// cancel wins over any pending dialog
	if it == types.IntentCancel && confident {
		if session.Pending == nil {
			return &model.Reply{Text: replyNothingToCancel}, nil
		}
		session.ClearPending()
		return &model.Reply{Text: replyCancelled}, nil
	}

	if session.Pending != nil {
		switch session.Pending.Kind {
		case types.PendingConfirmation:
			return uc.resumeConfirmation(ctx, session, it, confident, msg)
		default:
			return uc.resumeEnrichment(ctx, session, it, confident, msg)
		}
	}

	// never act on a guess: an unclear turn gets a question, not a reply
	if !confident || it == types.IntentUnknown {
		logger.Info("classification not confident, asking the user to rephrase",
			"intent", it, "confidence", classification.Confidence)
		return &model.Reply{Text: replyUnclearIntent}, nil
	}

	return uc.dispatch(ctx, session, it, msg)
}

// classify runs the intent classifier, degrading to unknown on failure so a
// model outage turns into a rephrase request instead of a dropped message
func (uc *UseCases) classify(ctx context.Context, session *model.ConversationSession, text string) *model.Classification {
	classification, err := uc.classifier.Classify(ctx, text, session.History)
	if err != nil {
		logging.From(ctx).Warn("intent classification failed", "error", err.Error())
		return &model.Classification{Intent: types.IntentUnknown, Confidence: 0}
	}
	return classification
}

// resumeConfirmation handles a message while a yes/no question is pending.
// A clear yes executes, a clear no aborts, a confident new request supersedes
// the question, and anything else re-asks within the attempt bound.
func (uc *UseCases) resumeConfirmation(ctx context.Context, session *model.ConversationSession, it types.Intent, confident bool, msg *model.IncomingMessage) (*model.Reply, error) {
	pending := session.Pending

	switch uc.interpretConfirmation(msg.Text) {
	case verdictAffirm:
		return uc.runTool(ctx, session, pending.Tool, pending.PartialData, msg.Media)
	case verdictDeny:
		session.ClearPending()
		return &model.Reply{Text: replyDenied}, nil
	}

	if confident && uc.isNewRequest(it) {
		logging.From(ctx).Info("pending confirmation superseded by new request",
			"pending_tool", pending.Tool, "intent", it)
		session.ClearPending()
		return uc.dispatch(ctx, session, it, msg)
	}

	pending.Attempts++
	if pending.Attempts >= uc.cfg.MaxClarificationAttempts {
		session.ClearPending()
		return &model.Reply{Text: replyGaveUp}, nil
	}

	question := session.LastQuestion
	if question == "" {
		question = uc.confirmationQuestion(pending.Tool, pending.PartialData)
	}
	return &model.Reply{Text: "Sorry, I need a yes or no. " + question}, nil
}

// resumeEnrichment handles a message while a clarification question is
// pending. The message is first tried as the answer to the missing field;
// a confident unrelated request supersedes the sub-dialog instead.
func (uc *UseCases) resumeEnrichment(ctx context.Context, session *model.ConversationSession, it types.Intent, confident bool, msg *model.IncomingMessage) (*model.Reply, error) {
	pending := session.Pending

	if confident && uc.isNewRequest(it) && intentTools[it] != pending.Tool {
		logging.From(ctx).Info("pending clarification superseded by new request",
			"pending_tool", pending.Tool, "intent", it)
		session.ClearPending()
		return uc.dispatch(ctx, session, it, msg)
	}

	answer := strings.TrimSpace(msg.Text)
	if answer == "" {
		pending.Attempts++
		if pending.Attempts >= uc.cfg.MaxClarificationAttempts {
			session.ClearPending()
			return &model.Reply{Text: replyGaveUp}, nil
		}
		return &model.Reply{Text: session.LastQuestion}, nil
	}

	args := pending.PartialData
	if args == nil {
		args = map[string]any{}
	}
	args[pending.MissingField] = answer

	attempts := pending.Attempts + 1
	if attempts >= uc.cfg.MaxClarificationAttempts && firstMissingField(pending.Tool, args) != "" {
		session.ClearPending()
		return &model.Reply{Text: replyGaveUp}, nil
	}

	tool := pending.Tool
	session.ClearPending()
	return uc.advanceTool(ctx, session, tool, args, msg.Media, attempts)
}

// isNewRequest reports whether an intent represents an actionable request
// that can supersede a pending dialog
func (uc *UseCases) isNewRequest(it types.Intent) bool {
	if _, ok := intentTools[it]; ok {
		return true
	}
	switch it {
	case "recall", "task_list", "list_show":
		return true
	default:
		return false
	}
}
