package interfaces

import (
	"context"

	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// MemoryItemRepository defines the interface for semantic memory persistence
type MemoryItemRepository interface {
	// Create creates a new memory item. Content is immutable afterwards.
	Create(ctx context.Context, userID types.UserID, item *model.MemoryItem) (*model.MemoryItem, error)

	// Get retrieves a memory item by ID
	Get(ctx context.Context, userID types.UserID, itemID types.MemoryItemID) (*model.MemoryItem, error)

	// Delete deletes a memory item by ID
	Delete(ctx context.Context, userID types.UserID, itemID types.MemoryItemID) error

	// List retrieves all memory items for a user, newest first
	List(ctx context.Context, userID types.UserID) ([]*model.MemoryItem, error)

	// FindByEmbedding performs vector similarity search using cosine
	// distance. Returns up to limit items with their 0-1 similarity scores,
	// best first. Score filtering is the caller's concern.
	FindByEmbedding(ctx context.Context, userID types.UserID, embedding []float32, limit int) ([]*model.ScoredMemoryItem, error)
}
