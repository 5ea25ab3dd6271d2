package types

import "fmt"

// ConversationState represents the dialog state of a chat session
type ConversationState string

const (
	StateIdle                  ConversationState = "IDLE"
	StateAwaitingClarification ConversationState = "AWAITING_CLARIFICATION"
	StateAwaitingConfirmation  ConversationState = "AWAITING_CONFIRMATION"
	StateExecuting             ConversationState = "EXECUTING"
)

// AllConversationStates returns all valid conversation states
func AllConversationStates() []ConversationState {
	return []ConversationState{
		StateIdle,
		StateAwaitingClarification,
		StateAwaitingConfirmation,
		StateExecuting,
	}
}

// IsValid checks if the conversation state is valid
func (s ConversationState) IsValid() bool {
	switch s {
	case StateIdle,
		StateAwaitingClarification,
		StateAwaitingConfirmation,
		StateExecuting:
		return true
	default:
		return false
	}
}

// Normalize returns the state, treating empty as StateIdle
func (s ConversationState) Normalize() ConversationState {
	if s == "" {
		return StateIdle
	}
	return s
}

// String returns the string representation of the conversation state
func (s ConversationState) String() string {
	return string(s)
}

// PendingKind represents the kind of a pending dialog action
type PendingKind string

const (
	// PendingEnrichment waits for the user to supply a missing field
	PendingEnrichment PendingKind = "enrichment"
	// PendingConfirmation waits for an explicit yes/no before a destructive operation
	PendingConfirmation PendingKind = "confirmation"
)

// IsValid checks if the pending kind is valid
func (k PendingKind) IsValid() bool {
	switch k {
	case PendingEnrichment, PendingConfirmation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the pending kind
func (k PendingKind) String() string {
	return string(k)
}

// ParsePendingKind parses a string into a PendingKind
func ParsePendingKind(s string) (PendingKind, error) {
	kind := PendingKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid pending kind: %s", s)
	}
	return kind, nil
}
