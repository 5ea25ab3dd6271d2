package model

import (
	"time"

	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// EmbeddingDimension is the dimension of memory item embeddings
const EmbeddingDimension = 768

// MemoryItem is a single entry of the semantic memory store. Content is
// immutable after creation; the item is either kept or deleted.
type MemoryItem struct {
	ID        types.MemoryItemID
	Content   string
	People    []string
	Tags      []string
	Location  string
	Embedding []float32 // vector for similarity search, derived from Content
	CreatedAt time.Time
}
