package interfaces

import (
	"context"

	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// ListTasksOptions holds filter options for listing tasks
type ListTasksOptions struct {
	Completed *bool
}

// ListTasksOption is a functional option for task listing
type ListTasksOption func(*ListTasksOptions)

// WithCompleted filters tasks by completion state
func WithCompleted(completed bool) ListTasksOption {
	return func(o *ListTasksOptions) {
		o.Completed = &completed
	}
}

// TaskRepository defines the interface for task persistence
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, userID types.UserID, task *model.Task) (*model.Task, error)

	// Get retrieves a task by ID
	Get(ctx context.Context, userID types.UserID, taskID types.TaskID) (*model.Task, error)

	// List retrieves tasks for a user, newest first, optionally filtered
	List(ctx context.Context, userID types.UserID, opts ...ListTasksOption) ([]*model.Task, error)

	// Update replaces a task's mutable fields
	Update(ctx context.Context, userID types.UserID, task *model.Task) (*model.Task, error)

	// Delete deletes a task by ID
	Delete(ctx context.Context, userID types.UserID, taskID types.TaskID) error
}
