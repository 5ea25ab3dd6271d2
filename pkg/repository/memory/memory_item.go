package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

type memoryItemRepository struct {
	mu    sync.RWMutex
	items map[types.UserID]map[types.MemoryItemID]*model.MemoryItem
}

func newMemoryItemRepository() *memoryItemRepository {
	return &memoryItemRepository{
		items: make(map[types.UserID]map[types.MemoryItemID]*model.MemoryItem),
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	copied := make([]string, len(s))
	copy(copied, s)
	return copied
}

func copyMemoryItem(item *model.MemoryItem) *model.MemoryItem {
	copied := &model.MemoryItem{
		ID:        item.ID,
		Content:   item.Content,
		People:    copyStrings(item.People),
		Tags:      copyStrings(item.Tags),
		Location:  item.Location,
		CreatedAt: item.CreatedAt,
	}
	if item.Embedding != nil {
		copied.Embedding = make([]float32, len(item.Embedding))
		copy(copied.Embedding, item.Embedding)
	}
	return copied
}

func (r *memoryItemRepository) Create(ctx context.Context, userID types.UserID, item *model.MemoryItem) (*model.MemoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[userID]; !exists {
		r.items[userID] = make(map[types.MemoryItemID]*model.MemoryItem)
	}

	created := copyMemoryItem(item)
	if created.ID == "" {
		created.ID = types.NewMemoryItemID()
	}
	created.CreatedAt = time.Now().UTC()

	r.items[userID][created.ID] = created
	return copyMemoryItem(created), nil
}

func (r *memoryItemRepository) Get(ctx context.Context, userID types.UserID, itemID types.MemoryItemID) (*model.MemoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.items[userID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "memory item not found", goerr.V("itemID", itemID))
	}

	item, exists := bucket[itemID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "memory item not found", goerr.V("itemID", itemID))
	}

	return copyMemoryItem(item), nil
}

func (r *memoryItemRepository) Delete(ctx context.Context, userID types.UserID, itemID types.MemoryItemID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.items[userID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "memory item not found", goerr.V("itemID", itemID))
	}

	if _, exists := bucket[itemID]; !exists {
		return goerr.Wrap(ErrNotFound, "memory item not found", goerr.V("itemID", itemID))
	}

	delete(bucket, itemID)
	return nil
}

func (r *memoryItemRepository) List(ctx context.Context, userID types.UserID) ([]*model.MemoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.items[userID]
	if !exists {
		return []*model.MemoryItem{}, nil
	}

	result := make([]*model.MemoryItem, 0, len(bucket))
	for _, item := range bucket {
		result = append(result, copyMemoryItem(item))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *memoryItemRepository) FindByEmbedding(ctx context.Context, userID types.UserID, embedding []float32, limit int) ([]*model.ScoredMemoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.items[userID]
	if !exists {
		return []*model.ScoredMemoryItem{}, nil
	}

	var candidates []*model.ScoredMemoryItem
	for _, item := range bucket {
		if len(item.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(embedding, item.Embedding)
		candidates = append(candidates, &model.ScoredMemoryItem{
			Item:  copyMemoryItem(item),
			Score: score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	return candidates[:limit], nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
