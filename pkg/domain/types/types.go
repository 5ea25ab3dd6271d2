package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// UserID identifies the end user that owns the data. All store access is
// scoped by UserID to prevent cross-user leakage.
type UserID string

// Validate checks if the UserID is valid
func (u UserID) Validate() error {
	if u == "" {
		return goerr.New("user ID cannot be empty")
	}
	return nil
}

// String returns the string representation of UserID
func (u UserID) String() string {
	return string(u)
}

// ChatID identifies a conversation channel. Session state is keyed by ChatID.
type ChatID string

// Validate checks if the ChatID is valid
func (c ChatID) Validate() error {
	if c == "" {
		return goerr.New("chat ID cannot be empty")
	}
	return nil
}

// String returns the string representation of ChatID
func (c ChatID) String() string {
	return string(c)
}

// MemoryItemID is a UUID-based identifier for MemoryItem
type MemoryItemID string

// NewMemoryItemID generates a new UUID v4 MemoryItemID
func NewMemoryItemID() MemoryItemID {
	return MemoryItemID(uuid.New().String())
}

// String returns the string representation of MemoryItemID
func (m MemoryItemID) String() string {
	return string(m)
}

// TaskID is a UUID-based identifier for Task
type TaskID string

// NewTaskID generates a new UUID v4 TaskID
func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

// String returns the string representation of TaskID
func (t TaskID) String() string {
	return string(t)
}

// ListID is a UUID-based identifier for List
type ListID string

// NewListID generates a new UUID v4 ListID
func NewListID() ListID {
	return ListID(uuid.New().String())
}

// String returns the string representation of ListID
func (l ListID) String() string {
	return string(l)
}

// ListItemID is a UUID-based identifier for ListItem
type ListItemID string

// NewListItemID generates a new UUID v4 ListItemID
func NewListItemID() ListItemID {
	return ListItemID(uuid.New().String())
}

// String returns the string representation of ListItemID
func (l ListItemID) String() string {
	return string(l)
}

// TurnID identifies a single processed turn. UUID v7 so IDs sort by time.
type TurnID string

// NewTurnID generates a new UUID v7 TurnID
func NewTurnID() TurnID {
	return TurnID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of TurnID
func (t TurnID) String() string {
	return string(t)
}
