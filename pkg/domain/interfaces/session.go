package interfaces

import (
	"context"

	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// SessionRepository defines the interface for conversation session state.
// Callers must serialize access per chat ID; the repository itself only
// guarantees that Get returns an isolated copy.
type SessionRepository interface {
	// Get retrieves the session for a chat.
	// Returns nil without error when no session exists yet.
	Get(ctx context.Context, chatID types.ChatID) (*model.ConversationSession, error)

	// Put stores the session state for its chat
	Put(ctx context.Context, session *model.ConversationSession) error

	// Delete removes the session for a chat
	Delete(ctx context.Context, chatID types.ChatID) error
}

// ExecutionRepository defines the interface for tool execution records used
// for idempotency guarding
type ExecutionRepository interface {
	// Get retrieves the execution record for an idempotency key.
	// Returns nil without error when the key has not been seen.
	Get(ctx context.Context, userID types.UserID, key string) (*model.ExecutionRecord, error)

	// Put stores an execution record
	Put(ctx context.Context, userID types.UserID, record *model.ExecutionRecord) error
}
