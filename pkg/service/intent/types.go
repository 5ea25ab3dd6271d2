package intent

import (
	"context"

	"github.com/secmon-lab/otomo/pkg/domain/model"
)

// Label is one configured intent label with its semantic description. The
// description is what the model classifies against; there is no keyword
// matching anywhere in this package.
type Label struct {
	Name        string
	Description string
}

// Classifier determines the intent of a user message
type Classifier interface {
	// Classify returns the intent label and a 0-1 confidence for the
	// message, taking recent conversation turns into account
	Classify(ctx context.Context, message string, history []model.Turn) (*model.Classification, error)
}
