package search_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/repository/memory"
	"github.com/secmon-lab/otomo/pkg/service/search"
)

// mockEmbeddingClient is a mock gollem LLMClient returning a fixed embedding
type mockEmbeddingClient struct {
	embedding []float64
}

func (c *mockEmbeddingClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, nil
}

func (c *mockEmbeddingClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return [][]float64{c.embedding}, nil
}

func TestMemorySearchThreshold(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	userID := types.UserID("user-1")

	// cosine similarity against the [1,0,0] query: 1.0, ~0.49, ~0.33
	items := []*model.MemoryItem{
		{Content: "alice lives in tokyo", Embedding: []float32{1, 0, 0}},
		{Content: "bob likes coffee", Embedding: []float32{0.49, 0.8717, 0}},
		{Content: "the car is blue", Embedding: []float32{0.33, 0.9440, 0}},
	}
	for _, item := range items {
		_, err := repo.MemoryItem().Create(ctx, userID, item)
		gt.NoError(t, err).Required()
	}

	searcher := search.NewMemorySearcher(repo, &mockEmbeddingClient{embedding: []float64{1, 0, 0}})
	gt.Value(t, searcher.Source()).Equal(types.SourceMemory)

	strategy := &model.SearchStrategy{
		Query: "where does alice live?",
		Sources: map[types.Source]model.SourcePlan{
			types.SourceMemory: {Tier: types.TierPrimary, Terms: []string{"alice", "address"}},
		},
	}

	result, err := searcher.Search(ctx, userID, strategy)
	gt.NoError(t, err).Required()

	// the 0.33 hit falls below the 0.40 floor
	gt.Array(t, result.Items).Length(2)
	gt.Value(t, result.Items[0].Text).Equal("alice lives in tokyo")
	gt.Value(t, result.Items[1].Text).Equal("bob likes coffee")
	gt.Bool(t, result.Items[0].Score > result.Items[1].Score).True()
}

func TestMemorySearchCustomThreshold(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	userID := types.UserID("user-1")

	item := &model.MemoryItem{Content: "bob likes coffee", Embedding: []float32{0.49, 0.8717, 0}}
	_, err := repo.MemoryItem().Create(ctx, userID, item)
	gt.NoError(t, err).Required()

	searcher := search.NewMemorySearcher(repo, &mockEmbeddingClient{embedding: []float64{1, 0, 0}},
		search.WithScoreThreshold(0.6))

	strategy := &model.SearchStrategy{Query: "coffee"}
	result, err := searcher.Search(ctx, userID, strategy)
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Empty()).True()
}

func TestMemorySearchOtherUserInvisible(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	item := &model.MemoryItem{Content: "a secret", Embedding: []float32{1, 0, 0}}
	_, err := repo.MemoryItem().Create(ctx, "someone-else", item)
	gt.NoError(t, err).Required()

	searcher := search.NewMemorySearcher(repo, &mockEmbeddingClient{embedding: []float64{1, 0, 0}})

	result, err := searcher.Search(ctx, "user-1", &model.SearchStrategy{Query: "secret"})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Empty()).True()
}
