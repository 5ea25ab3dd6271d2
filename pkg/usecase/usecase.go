package usecase

import (
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model/config"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/service/aggregate"
	"github.com/secmon-lab/otomo/pkg/service/extract"
	"github.com/secmon-lab/otomo/pkg/service/intent"
	"github.com/secmon-lab/otomo/pkg/service/relevance"
	"github.com/secmon-lab/otomo/pkg/service/search"
	"github.com/secmon-lab/otomo/pkg/service/timeparse"
)

// UseCases wires the assistant pipeline: classification, dialog state,
// retrieval and tool execution. All turn handling goes through HandleTurn.
type UseCases struct {
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	cfg       *config.AssistantConfig

	classifier   intent.Classifier
	coordinator  relevance.Coordinator
	dispatcher   *search.Dispatcher
	aggregator   aggregate.Aggregator
	extractor    extract.Extractor
	timeResolver timeparse.Resolver

	now func() time.Time

	// chatLocks serializes turns per chat; the session state machine assumes
	// a single writer per ChatID.
	chatLocks sync.Map
}

type Option func(*UseCases)

// WithAssistantConfig overrides the default behavior settings
func WithAssistantConfig(cfg *config.AssistantConfig) Option {
	return func(uc *UseCases) {
		uc.cfg = cfg
	}
}

// WithClassifier overrides the intent classifier
func WithClassifier(c intent.Classifier) Option {
	return func(uc *UseCases) {
		uc.classifier = c
	}
}

// WithCoordinator overrides the relevance coordinator
func WithCoordinator(c relevance.Coordinator) Option {
	return func(uc *UseCases) {
		uc.coordinator = c
	}
}

// WithDispatcher overrides the search dispatcher
func WithDispatcher(d *search.Dispatcher) Option {
	return func(uc *UseCases) {
		uc.dispatcher = d
	}
}

// WithAggregator overrides the result aggregator
func WithAggregator(a aggregate.Aggregator) Option {
	return func(uc *UseCases) {
		uc.aggregator = a
	}
}

// WithExtractor overrides the argument extractor
func WithExtractor(e extract.Extractor) Option {
	return func(uc *UseCases) {
		uc.extractor = e
	}
}

// WithTimeResolver overrides the time expression resolver
func WithTimeResolver(r timeparse.Resolver) Option {
	return func(uc *UseCases) {
		uc.timeResolver = r
	}
}

// WithNow overrides the clock, for tests
func WithNow(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

// New creates the use case layer. Components not supplied via options are
// built from the repository and LLM client.
func New(repo interfaces.Repository, llmClient gollem.LLMClient, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	uc := &UseCases{
		repo:      repo,
		llmClient: llmClient,
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.cfg == nil {
		uc.cfg = config.DefaultAssistantConfig()
	}

	if uc.classifier == nil {
		labels := make([]intent.Label, len(uc.cfg.Intents))
		for i, l := range uc.cfg.Intents {
			labels[i] = intent.Label{Name: l.Name, Description: l.Description}
		}
		classifier, err := intent.New(llmClient, labels)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build intent classifier")
		}
		uc.classifier = classifier
	}

	if uc.coordinator == nil {
		coordinator, err := relevance.New(llmClient)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build relevance coordinator")
		}
		uc.coordinator = coordinator
	}

	if uc.dispatcher == nil {
		uc.dispatcher = search.NewDispatcher(
			search.NewMemorySearcher(repo, llmClient, search.WithScoreThreshold(uc.cfg.MemoryScoreThreshold)),
			search.NewTaskSearcher(repo),
			search.NewListSearcher(repo),
		)
	}

	if uc.aggregator == nil {
		aggregator, err := aggregate.New(llmClient)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build aggregator")
		}
		uc.aggregator = aggregator
	}

	if uc.extractor == nil {
		extractor, err := extract.New(llmClient)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build extractor")
		}
		uc.extractor = extractor
	}

	if uc.timeResolver == nil {
		resolver, err := timeparse.New(llmClient)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build time resolver")
		}
		uc.timeResolver = resolver
	}

	return uc, nil
}

// lockChat acquires the per-chat mutex and returns its release function
func (uc *UseCases) lockChat(chatID types.ChatID) func() {
	v, _ := uc.chatLocks.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
