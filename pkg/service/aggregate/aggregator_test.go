package aggregate_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/service/aggregate"
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

func TestRespondGroupsBySource(t *testing.T) {
	aggregator, err := aggregate.New(&mockLLMClient{})
	gt.NoError(t, err).Required()

	results := []*model.SearchResult{
		{Source: types.SourceTasks, Items: []model.ScoredItem{
			{ID: "t1", Text: "call alice", Score: 1.0},
		}},
		{Source: types.SourceMemory, Items: []model.ScoredItem{
			{ID: "m1", Text: "alice lives in tokyo", Score: 0.7},
			{ID: "m2", Text: "alice likes jazz", Score: 0.5},
		}},
	}

	got, err := aggregator.Respond(context.Background(), "what do I know about alice?", results)
	gt.NoError(t, err).Required()

	// best-scoring source leads
	gt.Bool(t, strings.HasPrefix(got, "From your tasks:\n- call alice")).True()
	gt.Bool(t, strings.Contains(got, "From your memory:\n- alice lives in tokyo\n- alice likes jazz")).True()
}

func TestRespondDropsNearDuplicates(t *testing.T) {
	aggregator, err := aggregate.New(&mockLLMClient{})
	gt.NoError(t, err).Required()

	results := []*model.SearchResult{
		{Source: types.SourceMemory, Items: []model.ScoredItem{
			{ID: "m1", Text: "Alice lives in Tokyo.", Score: 0.9},
			{ID: "m2", Text: "alice lives in tokyo", Score: 0.6},
		}},
	}

	got, err := aggregator.Respond(context.Background(), "where does alice live?", results)
	gt.NoError(t, err).Required()

	gt.Value(t, strings.Count(got, "- ")).Equal(1)
	gt.Bool(t, strings.Contains(got, "Alice lives in Tokyo.")).True()
}

func TestRespondNoMatchPersonalQuery(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{"kind": "personal"}`}}, nil
				},
			}, nil
		},
	}

	aggregator, err := aggregate.New(llmClient)
	gt.NoError(t, err).Required()

	got, err := aggregator.Respond(context.Background(), "where does my dentist live?", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, got).Equal(aggregate.NoMatchReply)
}

func TestRespondGeneralKnowledgeFallback(t *testing.T) {
	calls := 0
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					calls++
					if calls == 1 {
						return &gollem.Response{Texts: []string{`{"kind": "general"}`}}, nil
					}
					return &gollem.Response{Texts: []string{"Tokyo is the capital of Japan."}}, nil
				},
			}, nil
		},
	}

	aggregator, err := aggregate.New(llmClient)
	gt.NoError(t, err).Required()

	got, err := aggregator.Respond(context.Background(), "what is the capital of japan?", nil)
	gt.NoError(t, err).Required()

	// the answer is labeled as coming from the model, not the user's data
	gt.Bool(t, strings.HasPrefix(got, "(from general knowledge, not your saved data)\n")).True()
	gt.Bool(t, strings.Contains(got, "Tokyo is the capital of Japan.")).True()
}

func TestRespondClassificationFailureMeansNoMatch(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return nil, goerr.New("model unavailable")
				},
			}, nil
		},
	}

	aggregator, err := aggregate.New(llmClient)
	gt.NoError(t, err).Required()

	// ambiguity must never turn into an invented personal fact
	got, err := aggregator.Respond(context.Background(), "where did I park?", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, got).Equal(aggregate.NoMatchReply)
}

func TestRespondEmptyResultsTreatedAsMiss(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{"kind": "personal"}`}}, nil
				},
			}, nil
		},
	}

	aggregator, err := aggregate.New(llmClient)
	gt.NoError(t, err).Required()

	results := []*model.SearchResult{
		{Source: types.SourceMemory},
		{Source: types.SourceTasks},
	}

	got, err := aggregator.Respond(context.Background(), "where did I park?", results)
	gt.NoError(t, err).Required()
	gt.Value(t, got).Equal(aggregate.NoMatchReply)
}
