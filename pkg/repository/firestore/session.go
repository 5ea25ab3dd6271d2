package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type turnDoc struct {
	Role string    `firestore:"Role"`
	Text string    `firestore:"Text"`
	At   time.Time `firestore:"At"`
}

type pendingActionDoc struct {
	Kind         string         `firestore:"Kind"`
	Tool         string         `firestore:"Tool"`
	PartialData  map[string]any `firestore:"PartialData,omitempty"`
	MissingField string         `firestore:"MissingField,omitempty"`
	Attempts     int            `firestore:"Attempts"`
	CreatedAt    time.Time      `firestore:"CreatedAt"`
}

type sessionDoc struct {
	ChatID       types.ChatID      `firestore:"ChatID"`
	UserID       types.UserID      `firestore:"UserID"`
	State        string            `firestore:"State"`
	Pending      *pendingActionDoc `firestore:"Pending,omitempty"`
	History      []turnDoc         `firestore:"History,omitempty"`
	LastQuestion string            `firestore:"LastQuestion,omitempty"`
	CreatedAt    time.Time         `firestore:"CreatedAt"`
	UpdatedAt    time.Time         `firestore:"UpdatedAt"`
}

func toSessionDoc(s *model.ConversationSession) *sessionDoc {
	doc := &sessionDoc{
		ChatID:       s.ChatID,
		UserID:       s.UserID,
		State:        s.State.String(),
		LastQuestion: s.LastQuestion,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	for _, turn := range s.History {
		doc.History = append(doc.History, turnDoc{
			Role: string(turn.Role),
			Text: turn.Text,
			At:   turn.At,
		})
	}
	if s.Pending != nil {
		doc.Pending = &pendingActionDoc{
			Kind:         s.Pending.Kind.String(),
			Tool:         s.Pending.Tool.String(),
			PartialData:  s.Pending.PartialData,
			MissingField: s.Pending.MissingField,
			Attempts:     s.Pending.Attempts,
			CreatedAt:    s.Pending.CreatedAt,
		}
	}
	return doc
}

func fromSessionDoc(d *sessionDoc) *model.ConversationSession {
	s := &model.ConversationSession{
		ChatID:       d.ChatID,
		UserID:       d.UserID,
		State:        types.ConversationState(d.State).Normalize(),
		LastQuestion: d.LastQuestion,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for _, turn := range d.History {
		s.History = append(s.History, model.Turn{
			Role: model.TurnRole(turn.Role),
			Text: turn.Text,
			At:   turn.At,
		})
	}
	if d.Pending != nil {
		s.Pending = &model.PendingAction{
			Kind:         types.PendingKind(d.Pending.Kind),
			Tool:         model.ToolName(d.Pending.Tool),
			PartialData:  d.Pending.PartialData,
			MissingField: d.Pending.MissingField,
			Attempts:     d.Pending.Attempts,
			CreatedAt:    d.Pending.CreatedAt,
		}
	}
	return s
}

type sessionRepository struct {
	client *firestore.Client
}

func newSessionRepository(client *firestore.Client) *sessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) collection() *firestore.CollectionRef {
	return r.client.Collection("sessions")
}

func (r *sessionRepository) Get(ctx context.Context, chatID types.ChatID) (*model.ConversationSession, error) {
	doc, err := r.collection().Doc(chatID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("chatID", chatID))
	}

	var d sessionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session", goerr.V("chatID", chatID))
	}

	return fromSessionDoc(&d), nil
}

func (r *sessionRepository) Put(ctx context.Context, session *model.ConversationSession) error {
	if session.ChatID == "" {
		return goerr.New("session chat ID is required")
	}

	if _, err := r.collection().Doc(session.ChatID.String()).Set(ctx, toSessionDoc(session)); err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.V("chatID", session.ChatID))
	}

	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, chatID types.ChatID) error {
	if _, err := r.collection().Doc(chatID.String()).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V("chatID", chatID))
	}
	return nil
}

type executionRecordDoc struct {
	Key       string       `firestore:"Key"`
	ChatID    types.ChatID `firestore:"ChatID"`
	Tool      string       `firestore:"Tool"`
	Result    string       `firestore:"Result"`
	CreatedAt time.Time    `firestore:"CreatedAt"`
}

type executionRepository struct {
	client *firestore.Client
}

func newExecutionRepository(client *firestore.Client) *executionRepository {
	return &executionRepository{client: client}
}

func (r *executionRepository) collection(userID types.UserID) *firestore.CollectionRef {
	return userDoc(r.client, userID.String()).Collection("executions")
}

func (r *executionRepository) Get(ctx context.Context, userID types.UserID, key string) (*model.ExecutionRecord, error) {
	doc, err := r.collection(userID).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get execution record", goerr.V("key", key))
	}

	var d executionRecordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal execution record", goerr.V("key", key))
	}

	return &model.ExecutionRecord{
		Key:       d.Key,
		ChatID:    d.ChatID,
		Tool:      model.ToolName(d.Tool),
		Result:    d.Result,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (r *executionRepository) Put(ctx context.Context, userID types.UserID, record *model.ExecutionRecord) error {
	if record.Key == "" {
		return goerr.New("execution record key is required")
	}

	doc := &executionRecordDoc{
		Key:       record.Key,
		ChatID:    record.ChatID,
		Tool:      record.Tool.String(),
		Result:    record.Result,
		CreatedAt: record.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection(userID).Doc(record.Key).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put execution record", goerr.V("key", record.Key))
	}

	return nil
}
