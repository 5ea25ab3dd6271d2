package relevance_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/service/relevance"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func planClient(response string) *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{response}}, nil
				},
			}, nil
		},
	}
}

func TestPlan(t *testing.T) {
	coordinator, err := relevance.New(planClient(`{
		"memory": {"tier": "primary", "terms": ["alice", "address"]},
		"tasks": {"tier": "tertiary", "terms": ["alice"]},
		"lists": {"tier": "none", "terms": []},
		"people": ["alice"],
		"locations": [],
		"dates": []
	}`))
	gt.NoError(t, err).Required()

	strategy, err := coordinator.Plan(context.Background(), "where does alice live?")
	gt.NoError(t, err).Required()

	gt.Value(t, strategy.Query).Equal("where does alice live?")
	gt.Value(t, strategy.Sources[types.SourceMemory].Tier).Equal(types.TierPrimary)
	gt.Array(t, strategy.Sources[types.SourceMemory].Terms).Equal([]string{"alice", "address"})
	gt.Value(t, strategy.Sources[types.SourceTasks].Tier).Equal(types.TierTertiary)
	gt.Value(t, strategy.Sources[types.SourceLists].Tier).Equal(types.TierNone)
	gt.Array(t, strategy.Entities.People).Equal([]string{"alice"})
}

func TestPlanFillsTermsFromQuery(t *testing.T) {
	// A searchable source with no terms gets the raw query as its term
	coordinator, err := relevance.New(planClient(`{
		"memory": {"tier": "secondary"},
		"tasks": {"tier": "none"},
		"lists": {"tier": "none"}
	}`))
	gt.NoError(t, err).Required()

	strategy, err := coordinator.Plan(context.Background(), "the harbor thing")
	gt.NoError(t, err).Required()

	gt.Array(t, strategy.Sources[types.SourceMemory].Terms).Equal([]string{"the harbor thing"})
	gt.Value(t, strategy.Sources[types.SourceTasks].Tier).Equal(types.TierNone)
}

func TestPlanEmptyTierMeansNone(t *testing.T) {
	// An omitted rating reads as "not relevant", not as fail-open primary
	coordinator, err := relevance.New(planClient(`{
		"memory": {"tier": "primary", "terms": ["x"]},
		"tasks": {"tier": ""},
		"lists": {"tier": "  "}
	}`))
	gt.NoError(t, err).Required()

	strategy, err := coordinator.Plan(context.Background(), "x")
	gt.NoError(t, err).Required()

	gt.Value(t, strategy.Sources[types.SourceTasks].Tier).Equal(types.TierNone)
	gt.Value(t, strategy.Sources[types.SourceLists].Tier).Equal(types.TierNone)
}

func TestPlanGarbledTierFailsOpen(t *testing.T) {
	coordinator, err := relevance.New(planClient(`{
		"memory": {"tier": "somewhat relevant, I think", "terms": ["x"]},
		"tasks": {"tier": "none"},
		"lists": {"tier": "none"}
	}`))
	gt.NoError(t, err).Required()

	strategy, err := coordinator.Plan(context.Background(), "x")
	gt.NoError(t, err).Required()

	gt.Value(t, strategy.Sources[types.SourceMemory].Tier).Equal(types.TierPrimary)
}

func TestPlanFallbackOnLLMFailure(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return nil, goerr.New("model unavailable")
				},
			}, nil
		},
	}

	coordinator, err := relevance.New(llmClient)
	gt.NoError(t, err).Required()

	strategy, err := coordinator.Plan(context.Background(), "where does alice live?")
	gt.NoError(t, err).Required()

	// retrieval must not be blocked by a failed plan
	for _, src := range types.AllSources() {
		gt.Value(t, strategy.Sources[src].Tier).Equal(types.TierPrimary)
		gt.Array(t, strategy.Sources[src].Terms).Equal([]string{"where does alice live?"})
	}
}

func TestPlanFallbackOnUnparsableResponse(t *testing.T) {
	coordinator, err := relevance.New(planClient("I would search memory first."))
	gt.NoError(t, err).Required()

	strategy, err := coordinator.Plan(context.Background(), "x")
	gt.NoError(t, err).Required()

	for _, src := range types.AllSources() {
		gt.Value(t, strategy.Sources[src].Tier).Equal(types.TierPrimary)
	}
}
