package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/repository/memory"
	"github.com/secmon-lab/otomo/pkg/usecase"
)

// stubCoordinator returns a fixed strategy for every query
type stubCoordinator struct {
	strategy *model.SearchStrategy
}

func (c *stubCoordinator) Plan(ctx context.Context, query string) (*model.SearchStrategy, error) {
	if c.strategy != nil {
		return c.strategy, nil
	}
	return &model.SearchStrategy{Query: query}, nil
}

// stubAggregator echoes the result count instead of calling a model
type stubAggregator struct {
	respondFn func(query string, results []*model.SearchResult) string
}

func (a *stubAggregator) Respond(ctx context.Context, query string, results []*model.SearchResult) (string, error) {
	if a.respondFn != nil {
		return a.respondFn(query, results), nil
	}
	return "stub answer", nil
}

func TestHandleTurnRecall(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	var gotQuery string
	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("recall", 0.9),
		}}),
		usecase.WithCoordinator(&stubCoordinator{}),
		usecase.WithAggregator(&stubAggregator{respondFn: func(query string, results []*model.SearchResult) string {
			gotQuery = query
			return "alice lives in tokyo"
		}}),
	)

	reply, err := uc.HandleTurn(ctx, message("where does alice live?"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("alice lives in tokyo")
	gt.Value(t, gotQuery).Equal("where does alice live?")
}

func TestHandleTurnTaskList(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_list", 0.9),
		}}),
	)

	reply, err := uc.HandleTurn(ctx, message("what's on my plate?"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("You have no open tasks.")

	_, err = repo.Task().Create(ctx, "user-1", &model.Task{
		ID:       types.NewTaskID(),
		Title:    "buy milk",
		Priority: types.PriorityHigh,
	})
	gt.NoError(t, err).Required()

	reply, err = uc.HandleTurn(ctx, message("what's on my plate?"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Your open tasks:\n- buy milk [high]")
}

func TestHandleTurnListFlow(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("list_add", 0.9),
			classification("list_show", 0.9),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"list": "shopping", "text": "milk"}
		}}),
	)

	// first item under an unknown name creates the list
	reply, err := uc.HandleTurn(ctx, message("put milk on the shopping list"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal(`Added "milk" to your shopping list.`)

	reply, err = uc.HandleTurn(ctx, message("show me the shopping list"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Your shopping list:\n- milk")
}

func TestHandleTurnListOverview(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	list, err := repo.List().CreateList(ctx, "user-1", &model.List{
		ID:   types.NewListID(),
		Name: "packing",
	})
	gt.NoError(t, err).Required()
	_, err = repo.List().AddItem(ctx, "user-1", &model.ListItem{
		ID:     types.NewListItemID(),
		ListID: list.ID,
		Text:   "passport",
	})
	gt.NoError(t, err).Required()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("list_show", 0.9),
		}}),
	)

	// no list name in the message falls back to the overview
	reply, err := uc.HandleTurn(ctx, message("show me my lists"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Your lists:\n- packing (1 open)")
}

func TestHandleTurnCompleteListItem(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	list, err := repo.List().CreateList(ctx, "user-1", &model.List{
		ID:   types.NewListID(),
		Name: "shopping",
	})
	gt.NoError(t, err).Required()
	_, err = repo.List().AddItem(ctx, "user-1", &model.ListItem{
		ID:     types.NewListItemID(),
		ListID: list.ID,
		Text:   "milk",
	})
	gt.NoError(t, err).Required()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("list_complete", 0.9),
			classification("chat", 0.2),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"list": "shopping", "text": "milk"}
		}}),
	)

	reply, err := uc.HandleTurn(ctx, message("got the milk"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal(`Check off "milk" from your shopping list?`)

	reply, err = uc.HandleTurn(ctx, message("yep"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal(`Checked off "milk" from your shopping list.`)

	items, err := repo.List().Items(ctx, "user-1", list.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(1)
	gt.Bool(t, items[0].Completed).True()
}
