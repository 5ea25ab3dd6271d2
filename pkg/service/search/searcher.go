package search

import (
	"context"

	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Searcher executes a single search against one data source. One invocation
// issues one logical store query; searchers never expand a request into
// per-term sub-queries and never report items that are not store hits.
type Searcher interface {
	Source() types.Source
	Search(ctx context.Context, userID types.UserID, strategy *model.SearchStrategy) (*model.SearchResult, error)
}

// Outcome is the result of a dispatched search: whatever results the
// executed searchers produced, plus a decision record per source stating
// whether it ran and why.
type Outcome struct {
	Results   []*model.SearchResult
	Decisions []model.SourceDecision
}

// Empty reports whether no executed source produced any hit
func (o *Outcome) Empty() bool {
	for _, r := range o.Results {
		if !r.Empty() {
			return false
		}
	}
	return true
}

// Dispatcher runs searchers according to the strategy's tier gate
type Dispatcher struct {
	searchers []Searcher
}

// NewDispatcher creates a dispatcher over the given searchers
func NewDispatcher(searchers ...Searcher) *Dispatcher {
	return &Dispatcher{searchers: searchers}
}

// Run executes the tier gate: primary and secondary sources run concurrently;
// tertiary sources run only when every higher tier came back empty; sources
// rated none never run. When nothing is searchable the outcome is empty with
// zero searcher invocations.
func (d *Dispatcher) Run(ctx context.Context, userID types.UserID, strategy *model.SearchStrategy) *Outcome {
	logger := logging.From(ctx)
	outcome := &Outcome{}

	var upper, tertiary []Searcher
	for _, s := range d.searchers {
		plan := strategy.Plan(s.Source())
		switch plan.Tier {
		case types.TierPrimary, types.TierSecondary:
			upper = append(upper, s)
		case types.TierTertiary:
			tertiary = append(tertiary, s)
		default:
			outcome.Decisions = append(outcome.Decisions, model.SourceDecision{
				Source: s.Source(),
				Tier:   plan.Tier,
				Reason: "rated not relevant",
			})
		}
	}

	d.runWave(ctx, userID, strategy, upper, "rated relevant", outcome)

	if len(tertiary) > 0 {
		if outcome.Empty() {
			d.runWave(ctx, userID, strategy, tertiary, "higher tiers empty", outcome)
		} else {
			for _, s := range tertiary {
				outcome.Decisions = append(outcome.Decisions, model.SourceDecision{
					Source: s.Source(),
					Tier:   strategy.Plan(s.Source()).Tier,
					Reason: "higher tier already produced results",
				})
			}
		}
	}

	for _, decision := range outcome.Decisions {
		attrs := []any{
			"source", decision.Source,
			"tier", decision.Tier,
			"executed", decision.Executed,
			"reason", decision.Reason,
			"hits", decision.Hits,
		}
		if decision.Err != nil {
			attrs = append(attrs, "error", decision.Err.Error())
		}
		logger.Info("search source decision", attrs...)
	}

	return outcome
}

// runWave executes one group of searchers concurrently. Each searcher writes
// only its own slot, so the wave needs no locking. A failing source yields
// an empty result and a recorded error; it never aborts its siblings.
func (d *Dispatcher) runWave(ctx context.Context, userID types.UserID, strategy *model.SearchStrategy, wave []Searcher, reason string, outcome *Outcome) {
	if len(wave) == 0 {
		return
	}

	results := make([]*model.SearchResult, len(wave))
	errs := make([]error, len(wave))

	var eg errgroup.Group
	for i, s := range wave {
		eg.Go(func() error {
			result, err := s.Search(ctx, userID, strategy)
			results[i] = result
			errs[i] = err
			return nil
		})
	}
	_ = eg.Wait()

	for i, s := range wave {
		decision := model.SourceDecision{
			Source:   s.Source(),
			Tier:     strategy.Plan(s.Source()).Tier,
			Executed: true,
			Reason:   reason,
			Err:      errs[i],
		}
		if errs[i] == nil && results[i] != nil {
			decision.Hits = len(results[i].Items)
			outcome.Results = append(outcome.Results, results[i])
		}
		outcome.Decisions = append(outcome.Decisions, decision)
	}
}
