package model

import (
	"time"

	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// Task is a reminder/todo entry. Lifecycle: created, optionally enriched with
// more fields, then completed or deleted.
type Task struct {
	ID          types.TaskID
	Title       string
	DueAt       *time.Time
	Priority    types.TaskPriority
	CompletedAt *time.Time
	People      []string
	Tags        []string
	Media       *MediaRef
	CreatedAt   time.Time
}

// Completed reports whether the task has been completed
func (t *Task) Completed() bool {
	return t.CompletedAt != nil
}
