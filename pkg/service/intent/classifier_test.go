package intent_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/service/intent"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{`{"intent": "chat", "confidence": 0.9}`}}, nil
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

func testLabels() []intent.Label {
	return []intent.Label{
		{Name: "remember", Description: "store a fact"},
		{Name: "recall", Description: "ask about stored data"},
		{Name: "chat", Description: "general conversation"},
	}
}

func TestClassify(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{"intent": "remember", "confidence": 0.92}`}}, nil
				},
			}, nil
		},
	}

	classifier, err := intent.New(llmClient, testLabels())
	gt.NoError(t, err).Required()

	got, err := classifier.Classify(context.Background(), "I met alice at the harbor today", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Intent).Equal(types.Intent("remember"))
	gt.Value(t, got.Confidence).Equal(0.92)
}

func TestClassifyUnknownLabel(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{"intent": "book_flight", "confidence": 0.95}`}}, nil
				},
			}, nil
		},
	}

	classifier, err := intent.New(llmClient, testLabels())
	gt.NoError(t, err).Required()

	got, err := classifier.Classify(context.Background(), "anything", nil)
	gt.NoError(t, err).Required()

	// a label outside the configured set must not be acted on
	gt.Value(t, got.Intent).Equal(types.IntentUnknown)
	gt.Value(t, got.Confidence).Equal(0.0)
}

func TestClassifyRetriesOnGarbage(t *testing.T) {
	calls := 0
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					calls++
					if calls == 1 {
						return &gollem.Response{Texts: []string{"Sure! The intent is probably recall."}}, nil
					}
					return &gollem.Response{Texts: []string{`{"intent": "recall", "confidence": 0.8}`}}, nil
				},
			}, nil
		},
	}

	classifier, err := intent.New(llmClient, testLabels())
	gt.NoError(t, err).Required()

	got, err := classifier.Classify(context.Background(), "where does alice live?", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Intent).Equal(types.Intent("recall"))
	gt.Value(t, calls).Equal(2)
}

func TestClassifyUnparsableAfterRetry(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{"not json at all"}}, nil
				},
			}, nil
		},
	}

	classifier, err := intent.New(llmClient, testLabels())
	gt.NoError(t, err).Required()

	got, err := classifier.Classify(context.Background(), "anything", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Intent).Equal(types.IntentUnknown)
}

func TestClassifyConfidenceClamped(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{`{"intent": "chat", "confidence": 3.5}`}}, nil
				},
			}, nil
		},
	}

	classifier, err := intent.New(llmClient, testLabels())
	gt.NoError(t, err).Required()

	got, err := classifier.Classify(context.Background(), "hello", nil)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Confidence).Equal(1.0)
}

func TestClassifyPropagatesLLMError(t *testing.T) {
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return nil, goerr.New("model unavailable")
		},
	}

	classifier, err := intent.New(llmClient, testLabels())
	gt.NoError(t, err).Required()

	_, err = classifier.Classify(context.Background(), "hello", []model.Turn{})
	gt.Error(t, err)
}
