package model

import (
	"time"

	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// TurnRole identifies who produced a turn in the conversation history
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one entry of the bounded conversation history
type Turn struct {
	Role TurnRole
	Text string
	At   time.Time
}

// PendingAction holds the state of an unfinished dialog: either an enrichment
// sub-dialog collecting missing required fields, or a confirmation gate before
// a destructive operation. At most one PendingAction exists per chat.
type PendingAction struct {
	Kind         types.PendingKind
	Tool         ToolName       // the operation that will run once complete
	PartialData  map[string]any // accumulated arguments
	MissingField string
	Attempts     int // clarification turns spent so far
	CreatedAt    time.Time
}

// ConversationSession is the per-chat dialog state. It is mutated on every
// turn; callers must serialize turns per ChatID.
type ConversationSession struct {
	ChatID       types.ChatID
	UserID       types.UserID
	State        types.ConversationState
	Pending      *PendingAction
	History      []Turn
	LastQuestion string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewConversationSession creates an idle session for a chat
func NewConversationSession(chatID types.ChatID, userID types.UserID) *ConversationSession {
	now := time.Now().UTC()
	return &ConversationSession{
		ChatID:    chatID,
		UserID:    userID,
		State:     types.StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn records a turn, evicting the oldest entries beyond maxHistory
func (s *ConversationSession) AppendTurn(role TurnRole, text string, maxHistory int) {
	s.History = append(s.History, Turn{Role: role, Text: text, At: time.Now().UTC()})
	if maxHistory > 0 && len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
	s.UpdatedAt = time.Now().UTC()
}

// SetPending installs a pending action, replacing any existing one. Replacing
// rather than stacking keeps the at-most-one invariant; the caller decides
// whether to merge partial data first.
func (s *ConversationSession) SetPending(p *PendingAction) {
	if p.PartialData == nil {
		p.PartialData = map[string]any{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.Pending = p
	switch p.Kind {
	case types.PendingConfirmation:
		s.State = types.StateAwaitingConfirmation
	default:
		s.State = types.StateAwaitingClarification
	}
	s.UpdatedAt = time.Now().UTC()
}

// ClearPending removes the pending action and returns the session to idle
func (s *ConversationSession) ClearPending() {
	s.Pending = nil
	s.State = types.StateIdle
	s.LastQuestion = ""
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so repositories can hand out isolated snapshots
func (s *ConversationSession) Clone() *ConversationSession {
	copied := *s
	if s.History != nil {
		copied.History = make([]Turn, len(s.History))
		copy(copied.History, s.History)
	}
	if s.Pending != nil {
		p := *s.Pending
		if s.Pending.PartialData != nil {
			p.PartialData = make(map[string]any, len(s.Pending.PartialData))
			for k, v := range s.Pending.PartialData {
				p.PartialData[k] = v
			}
		}
		copied.Pending = &p
	}
	return &copied
}
