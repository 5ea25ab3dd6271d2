package search

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// TaskSearcher searches open tasks by term and entity matching
type TaskSearcher struct {
	repo interfaces.Repository
}

// NewTaskSearcher creates a searcher over the task store
func NewTaskSearcher(repo interfaces.Repository) *TaskSearcher {
	return &TaskSearcher{repo: repo}
}

func (s *TaskSearcher) Source() types.Source {
	return types.SourceTasks
}

func (s *TaskSearcher) Search(ctx context.Context, userID types.UserID, strategy *model.SearchStrategy) (*model.SearchResult, error) {
	tasks, err := s.repo.Task().List(ctx, userID, interfaces.WithCompleted(false))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks for search")
	}

	plan := strategy.Plan(types.SourceTasks)
	result := &model.SearchResult{Source: types.SourceTasks}

	for _, task := range tasks {
		score := matchTask(task, plan.Terms, strategy.Entities)
		if score <= 0 {
			continue
		}
		result.Items = append(result.Items, model.ScoredItem{
			ID:        task.ID.String(),
			Text:      renderTask(task),
			Score:     score,
			CreatedAt: task.CreatedAt,
		})
	}

	return result, nil
}

// matchTask scores a task against terms and entities. A term hit on the
// title weighs more than a tag or people hit; no hit at all scores zero.
func matchTask(task *model.Task, terms []string, entities model.Entities) float64 {
	title := strings.ToLower(task.Title)

	var score float64
	for _, term := range terms {
		t := strings.ToLower(term)
		if t == "" {
			continue
		}
		if strings.Contains(title, t) {
			score = max(score, 1.0)
			continue
		}
		if containsFold(task.Tags, t) || containsFold(task.People, t) {
			score = max(score, 0.7)
		}
	}
	for _, person := range entities.People {
		if containsFold(task.People, person) || strings.Contains(title, strings.ToLower(person)) {
			score = max(score, 0.8)
		}
	}

	return score
}

func containsFold(values []string, needle string) bool {
	for _, v := range values {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func renderTask(task *model.Task) string {
	var sb strings.Builder
	sb.WriteString(task.Title)
	if task.DueAt != nil {
		sb.WriteString(" (due ")
		sb.WriteString(task.DueAt.Format("2006-01-02 15:04"))
		sb.WriteString(")")
	}
	return sb.String()
}
