package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/repository/memory"
	"github.com/secmon-lab/otomo/pkg/usecase"
)

// failingLLMClient refuses every session so any turn that needs the model
// fails
type failingLLMClient struct{}

func (c *failingLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, errors.New("model unavailable")
}

func (c *failingLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, errors.New("model unavailable")
}

// rememberClassifier forces an intent whose handler must call the model
type rememberClassifier struct{}

func (c *rememberClassifier) Classify(ctx context.Context, message string, history []model.Turn) (*model.Classification, error) {
	return &model.Classification{Intent: "remember", Confidence: 0.95}, nil
}

func TestChatLoopHidesInternalErrors(t *testing.T) {
	uc, err := usecase.New(memory.New(), &failingLLMClient{},
		usecase.WithClassifier(&rememberClassifier{}),
	)
	gt.NoError(t, err).Required()

	in := strings.NewReader("remember that I parked on level 3\nexit\n")
	var out bytes.Buffer
	gt.NoError(t, runChatLoop(context.Background(), uc, "local", in, &out))

	// the user sees a generic message, never the wrapped error text
	gt.Bool(t, strings.Contains(out.String(), "Sorry, something went wrong. Please try again.")).True()
	gt.Bool(t, strings.Contains(out.String(), "model unavailable")).False()
	gt.Bool(t, strings.Contains(out.String(), "failed to")).False()
}
