package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
)

// Firestore is the production Repository implementation backed by Cloud
// Firestore. Data is laid out under users/{userID} subcollections; sessions
// live in a top-level collection keyed by chat ID.
type Firestore struct {
	client     *firestore.Client
	memoryItem *memoryItemRepository
	task       *taskRepository
	list       *listRepository
	session    *sessionRepository
	execution  *executionRepository
}

var _ interfaces.Repository = &Firestore{}

// New creates a Firestore repository. An empty databaseID selects the
// default database.
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	return &Firestore{
		client:     client,
		memoryItem: newMemoryItemRepository(client),
		task:       newTaskRepository(client),
		list:       newListRepository(client),
		session:    newSessionRepository(client),
		execution:  newExecutionRepository(client),
	}, nil
}

func (f *Firestore) MemoryItem() interfaces.MemoryItemRepository {
	return f.memoryItem
}

func (f *Firestore) Task() interfaces.TaskRepository {
	return f.task
}

func (f *Firestore) List() interfaces.ListRepository {
	return f.list
}

func (f *Firestore) Session() interfaces.SessionRepository {
	return f.session
}

func (f *Firestore) Execution() interfaces.ExecutionRepository {
	return f.execution
}

func (f *Firestore) Close() error {
	if err := f.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

func userDoc(client *firestore.Client, userID string) *firestore.DocumentRef {
	return client.Collection("users").Doc(userID)
}
