package search

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// DefaultMemoryScoreThreshold is the minimum similarity score a memory hit
// needs to leave the searcher. Nearest-neighbor search returns up to K items
// no matter how far away they are; without this floor, any memory query
// "finds" something.
const DefaultMemoryScoreThreshold = 0.40

// defaultMemoryLimit is how many nearest neighbors to fetch before the
// threshold filter
const defaultMemoryLimit = 10

// MemorySearcher searches the semantic memory store by embedding similarity
type MemorySearcher struct {
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	threshold float64
	limit     int
}

// MemoryOption is a functional option for MemorySearcher
type MemoryOption func(*MemorySearcher)

// WithScoreThreshold overrides the minimum similarity score
func WithScoreThreshold(threshold float64) MemoryOption {
	return func(s *MemorySearcher) {
		s.threshold = threshold
	}
}

// WithLimit overrides the nearest-neighbor fetch size
func WithLimit(limit int) MemoryOption {
	return func(s *MemorySearcher) {
		s.limit = limit
	}
}

// NewMemorySearcher creates a searcher over the semantic memory store
func NewMemorySearcher(repo interfaces.Repository, llmClient gollem.LLMClient, opts ...MemoryOption) *MemorySearcher {
	s := &MemorySearcher{
		repo:      repo,
		llmClient: llmClient,
		threshold: DefaultMemoryScoreThreshold,
		limit:     defaultMemoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySearcher) Source() types.Source {
	return types.SourceMemory
}

func (s *MemorySearcher) Search(ctx context.Context, userID types.UserID, strategy *model.SearchStrategy) (*model.SearchResult, error) {
	plan := strategy.Plan(types.SourceMemory)

	// All terms join into one embedding query: one invocation, one search
	query := strings.Join(plan.Terms, " ")
	if query == "" {
		query = strategy.Query
	}

	embedding, err := generateEmbedding(ctx, s.llmClient, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.repo.MemoryItem().FindByEmbedding(ctx, userID, embedding, s.limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memory items", goerr.V("query", query))
	}

	result := &model.SearchResult{Source: types.SourceMemory}
	for _, hit := range hits {
		if hit.Score < s.threshold {
			continue
		}
		result.Items = append(result.Items, model.ScoredItem{
			ID:        hit.Item.ID.String(),
			Text:      hit.Item.Content,
			Score:     hit.Score,
			CreatedAt: hit.Item.CreatedAt,
		})
	}

	return result, nil
}

// generateEmbedding generates a float32 embedding for the given text
func generateEmbedding(ctx context.Context, llmClient gollem.LLMClient, text string) ([]float32, error) {
	embeddings, err := llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("embedding generation returned empty result")
	}

	embedding := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		embedding[i] = float32(v)
	}
	return embedding, nil
}
