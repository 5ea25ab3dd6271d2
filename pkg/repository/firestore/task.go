package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mediaRefDoc struct {
	Type      string  `firestore:"Type"`
	Path      string  `firestore:"Path,omitempty"`
	Latitude  float64 `firestore:"Latitude,omitempty"`
	Longitude float64 `firestore:"Longitude,omitempty"`
	Caption   string  `firestore:"Caption,omitempty"`
}

func toMediaRefDoc(m *model.MediaRef) *mediaRefDoc {
	if m == nil {
		return nil
	}
	return &mediaRefDoc{
		Type:      m.Type.String(),
		Path:      m.Path,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Caption:   m.Caption,
	}
}

func fromMediaRefDoc(d *mediaRefDoc) *model.MediaRef {
	if d == nil {
		return nil
	}
	return &model.MediaRef{
		Type:      types.MediaType(d.Type),
		Path:      d.Path,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Caption:   d.Caption,
	}
}

type taskDoc struct {
	ID          types.TaskID `firestore:"ID"`
	Title       string       `firestore:"Title"`
	DueAt       *time.Time   `firestore:"DueAt,omitempty"`
	Priority    string       `firestore:"Priority"`
	CompletedAt *time.Time   `firestore:"CompletedAt,omitempty"`
	People      []string     `firestore:"People,omitempty"`
	Tags        []string     `firestore:"Tags,omitempty"`
	Media       *mediaRefDoc `firestore:"Media,omitempty"`
	CreatedAt   time.Time    `firestore:"CreatedAt"`
}

func toTaskDoc(t *model.Task) *taskDoc {
	return &taskDoc{
		ID:          t.ID,
		Title:       t.Title,
		DueAt:       t.DueAt,
		Priority:    t.Priority.String(),
		CompletedAt: t.CompletedAt,
		People:      t.People,
		Tags:        t.Tags,
		Media:       toMediaRefDoc(t.Media),
		CreatedAt:   t.CreatedAt,
	}
}

func fromTaskDoc(d *taskDoc) *model.Task {
	return &model.Task{
		ID:          d.ID,
		Title:       d.Title,
		DueAt:       d.DueAt,
		Priority:    types.TaskPriority(d.Priority),
		CompletedAt: d.CompletedAt,
		People:      d.People,
		Tags:        d.Tags,
		Media:       fromMediaRefDoc(d.Media),
		CreatedAt:   d.CreatedAt,
	}
}

type taskRepository struct {
	client *firestore.Client
}

func newTaskRepository(client *firestore.Client) *taskRepository {
	return &taskRepository{client: client}
}

func (r *taskRepository) collection(userID types.UserID) *firestore.CollectionRef {
	return userDoc(r.client, userID.String()).Collection("tasks")
}

func (r *taskRepository) Create(ctx context.Context, userID types.UserID, task *model.Task) (*model.Task, error) {
	if task.ID == "" {
		task.ID = types.NewTaskID()
	}
	task.Priority = task.Priority.Normalize()
	task.CreatedAt = time.Now().UTC()

	docRef := r.collection(userID).Doc(task.ID.String())
	if _, err := docRef.Set(ctx, toTaskDoc(task)); err != nil {
		return nil, goerr.Wrap(err, "failed to create task")
	}

	return task, nil
}

func (r *taskRepository) Get(ctx context.Context, userID types.UserID, taskID types.TaskID) (*model.Task, error) {
	doc, err := r.collection(userID).Doc(taskID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", taskID))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V("taskID", taskID))
	}

	var d taskDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal task", goerr.V("taskID", taskID))
	}

	return fromTaskDoc(&d), nil
}

func (r *taskRepository) List(ctx context.Context, userID types.UserID, opts ...interfaces.ListTasksOption) ([]*model.Task, error) {
	var options interfaces.ListTasksOptions
	for _, opt := range opts {
		opt(&options)
	}

	iter := r.collection(userID).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	tasks := make([]*model.Task, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate tasks")
		}

		var d taskDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal task")
		}

		task := fromTaskDoc(&d)
		if options.Completed != nil && task.Completed() != *options.Completed {
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (r *taskRepository) Update(ctx context.Context, userID types.UserID, task *model.Task) (*model.Task, error) {
	docRef := r.collection(userID).Doc(task.ID.String())

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", task.ID))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V("taskID", task.ID))
	}

	var existing taskDoc
	if err := doc.DataTo(&existing); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal task", goerr.V("taskID", task.ID))
	}
	task.CreatedAt = existing.CreatedAt

	if _, err := docRef.Set(ctx, toTaskDoc(task)); err != nil {
		return nil, goerr.Wrap(err, "failed to update task", goerr.V("taskID", task.ID))
	}

	return task, nil
}

func (r *taskRepository) Delete(ctx context.Context, userID types.UserID, taskID types.TaskID) error {
	docRef := r.collection(userID).Doc(taskID.String())

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", taskID))
		}
		return goerr.Wrap(err, "failed to get task", goerr.V("taskID", taskID))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V("taskID", taskID))
	}

	return nil
}
