package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// ListSearcher searches lists and their items by term matching. One
// invocation makes one pass over the user's lists; it never expands terms
// into separate store queries.
type ListSearcher struct {
	repo interfaces.Repository
}

// NewListSearcher creates a searcher over the list store
func NewListSearcher(repo interfaces.Repository) *ListSearcher {
	return &ListSearcher{repo: repo}
}

func (s *ListSearcher) Source() types.Source {
	return types.SourceLists
}

func (s *ListSearcher) Search(ctx context.Context, userID types.UserID, strategy *model.SearchStrategy) (*model.SearchResult, error) {
	lists, err := s.repo.List().Lists(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to enumerate lists for search")
	}

	plan := strategy.Plan(types.SourceLists)
	result := &model.SearchResult{Source: types.SourceLists}

	for _, list := range lists {
		items, err := s.repo.List().Items(ctx, userID, list.ID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load list items", goerr.V("listID", list.ID))
		}

		nameMatch := matchAny(list.Name, plan.Terms)
		for _, item := range items {
			score := 0.0
			if nameMatch {
				score = 0.8
			}
			if matchAny(item.Text, plan.Terms) {
				score = 1.0
			}
			if score <= 0 {
				continue
			}

			text := fmt.Sprintf("%s (%s)", item.Text, list.Name)
			if item.Completed {
				text += " [done]"
			}
			result.Items = append(result.Items, model.ScoredItem{
				ID:        item.ID.String(),
				Text:      text,
				Score:     score,
				CreatedAt: item.CreatedAt,
			})
		}
	}

	return result, nil
}

func matchAny(value string, terms []string) bool {
	v := strings.ToLower(value)
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if strings.Contains(v, t) || strings.Contains(t, v) {
			return true
		}
	}
	return false
}
