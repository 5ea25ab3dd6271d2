package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

type taskRepository struct {
	mu    sync.RWMutex
	tasks map[types.UserID]map[types.TaskID]*model.Task
}

func newTaskRepository() *taskRepository {
	return &taskRepository{
		tasks: make(map[types.UserID]map[types.TaskID]*model.Task),
	}
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

func copyMediaRef(m *model.MediaRef) *model.MediaRef {
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}

func copyTask(t *model.Task) *model.Task {
	return &model.Task{
		ID:          t.ID,
		Title:       t.Title,
		DueAt:       copyTimePtr(t.DueAt),
		Priority:    t.Priority,
		CompletedAt: copyTimePtr(t.CompletedAt),
		People:      copyStrings(t.People),
		Tags:        copyStrings(t.Tags),
		Media:       copyMediaRef(t.Media),
		CreatedAt:   t.CreatedAt,
	}
}

func (r *taskRepository) Create(ctx context.Context, userID types.UserID, task *model.Task) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[userID]; !exists {
		r.tasks[userID] = make(map[types.TaskID]*model.Task)
	}

	created := copyTask(task)
	if created.ID == "" {
		created.ID = types.NewTaskID()
	}
	created.Priority = created.Priority.Normalize()
	created.CreatedAt = time.Now().UTC()

	r.tasks[userID][created.ID] = created
	return copyTask(created), nil
}

func (r *taskRepository) Get(ctx context.Context, userID types.UserID, taskID types.TaskID) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.tasks[userID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", taskID))
	}

	task, exists := bucket[taskID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", taskID))
	}

	return copyTask(task), nil
}

func (r *taskRepository) List(ctx context.Context, userID types.UserID, opts ...interfaces.ListTasksOption) ([]*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var options interfaces.ListTasksOptions
	for _, opt := range opts {
		opt(&options)
	}

	bucket, exists := r.tasks[userID]
	if !exists {
		return []*model.Task{}, nil
	}

	result := make([]*model.Task, 0, len(bucket))
	for _, task := range bucket {
		if options.Completed != nil && task.Completed() != *options.Completed {
			continue
		}
		result = append(result, copyTask(task))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *taskRepository) Update(ctx context.Context, userID types.UserID, task *model.Task) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.tasks[userID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", task.ID))
	}

	existing, exists := bucket[task.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", task.ID))
	}

	updated := copyTask(task)
	updated.CreatedAt = existing.CreatedAt

	bucket[task.ID] = updated
	return copyTask(updated), nil
}

func (r *taskRepository) Delete(ctx context.Context, userID types.UserID, taskID types.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.tasks[userID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", taskID))
	}

	if _, exists := bucket[taskID]; !exists {
		return goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", taskID))
	}

	delete(bucket, taskID)
	return nil
}
