package model

import (
	"time"

	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// Entities are structured values extracted from a query by the relevance
// coordinator, used by searchers to narrow store queries.
type Entities struct {
	People    []string
	Locations []string
	Dates     []string
}

// SourcePlan is the coordinator's verdict for one source: how relevant the
// source is to the query and what to search it with.
type SourcePlan struct {
	Tier  types.RelevanceTier
	Terms []string
}

// SearchStrategy is the ephemeral per-query plan produced by the relevance
// coordinator and consumed by the search dispatcher.
type SearchStrategy struct {
	Query    string
	Entities Entities
	Sources  map[types.Source]SourcePlan
}

// Plan returns the plan for a source, defaulting to TierNone when the
// coordinator did not mention the source at all.
func (s *SearchStrategy) Plan(src types.Source) SourcePlan {
	if p, ok := s.Sources[src]; ok {
		return p
	}
	return SourcePlan{Tier: types.TierNone}
}

// ScoredItem is one hit from a source searcher. Score is a 0-1 relevance
// value; sources without a natural score report 1.0 for exact filter matches.
type ScoredItem struct {
	ID        string
	Text      string
	Score     float64
	CreatedAt time.Time
}

// SearchResult is the outcome of one searcher invocation
type SearchResult struct {
	Source types.Source
	Items  []ScoredItem
}

// Empty reports whether the searcher produced no hits
func (r *SearchResult) Empty() bool {
	return r == nil || len(r.Items) == 0
}

// BestScore returns the highest item score, or 0 for an empty result
func (r *SearchResult) BestScore() float64 {
	var best float64
	for _, item := range r.Items {
		if item.Score > best {
			best = item.Score
		}
	}
	return best
}

// SourceDecision records whether a source ran for a query and why. Decisions
// are logged as structured records rather than inferred from response text.
type SourceDecision struct {
	Source   types.Source
	Tier     types.RelevanceTier
	Executed bool
	Reason   string
	Hits     int
	Err      error
}
