package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

type sessionRepository struct {
	mu       sync.RWMutex
	sessions map[types.ChatID]*model.ConversationSession
}

func newSessionRepository() *sessionRepository {
	return &sessionRepository{
		sessions: make(map[types.ChatID]*model.ConversationSession),
	}
}

func (r *sessionRepository) Get(ctx context.Context, chatID types.ChatID) (*model.ConversationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[chatID]
	if !exists {
		return nil, nil
	}

	return session.Clone(), nil
}

func (r *sessionRepository) Put(ctx context.Context, session *model.ConversationSession) error {
	if session.ChatID == "" {
		return goerr.New("session chat ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ChatID] = session.Clone()
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, chatID types.ChatID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, chatID)
	return nil
}

type executionRepository struct {
	mu      sync.RWMutex
	records map[types.UserID]map[string]*model.ExecutionRecord
}

func newExecutionRepository() *executionRepository {
	return &executionRepository{
		records: make(map[types.UserID]map[string]*model.ExecutionRecord),
	}
}

func (r *executionRepository) Get(ctx context.Context, userID types.UserID, key string) (*model.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.records[userID]
	if !exists {
		return nil, nil
	}

	record, exists := bucket[key]
	if !exists {
		return nil, nil
	}

	copied := *record
	return &copied, nil
}

func (r *executionRepository) Put(ctx context.Context, userID types.UserID, record *model.ExecutionRecord) error {
	if record.Key == "" {
		return goerr.New("execution record key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[userID]; !exists {
		r.records[userID] = make(map[string]*model.ExecutionRecord)
	}

	copied := *record
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}

	r.records[userID][record.Key] = &copied
	return nil
}
