package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/repository/memory"
	"github.com/secmon-lab/otomo/pkg/usecase"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"sure thing!"}}, nil
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
	return [][]float64{{0.1, 0.2, 0.3}}, nil
}

// stubClassifier replays a scripted sequence of classifications, one per turn
type stubClassifier struct {
	script []*model.Classification
	calls  int
}

func (c *stubClassifier) Classify(ctx context.Context, message string, history []model.Turn) (*model.Classification, error) {
	i := c.calls
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.calls++
	return c.script[i], nil
}

// stubExtractor returns canned arguments regardless of the message
type stubExtractor struct {
	extractFn func(tool model.ToolName, message string) map[string]any
}

func (e *stubExtractor) Extract(ctx context.Context, tool model.ToolName, message string, history []model.Turn) (map[string]any, error) {
	if e.extractFn != nil {
		return e.extractFn(tool, message), nil
	}
	return map[string]any{}, nil
}

// stubResolver resolves every expression to a fixed time
type stubResolver struct {
	at  time.Time
	err error
}

func (r *stubResolver) Resolve(ctx context.Context, expr string, now time.Time) (time.Time, error) {
	if r.err != nil {
		return time.Time{}, r.err
	}
	return r.at, nil
}

func classification(it types.Intent, confidence float64) *model.Classification {
	return &model.Classification{Intent: it, Confidence: confidence}
}

func newUseCases(t *testing.T, repo interfaces.Repository, opts ...usecase.Option) *usecase.UseCases {
	t.Helper()
	uc, err := usecase.New(repo, &mockLLMClient{}, opts...)
	gt.NoError(t, err).Required()
	return uc
}

func message(text string) *model.IncomingMessage {
	return &model.IncomingMessage{ChatID: "chat-1", UserID: "user-1", Text: text}
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	uc := newUseCases(t, memory.New())

	_, err := uc.HandleTurn(context.Background(), &model.IncomingMessage{ChatID: "chat-1", UserID: "user-1", Text: "   "})
	gt.Bool(t, errors.Is(err, usecase.ErrInvalidMessage)).True()

	_, err = uc.HandleTurn(context.Background(), &model.IncomingMessage{UserID: "user-1", Text: "hi"})
	gt.Bool(t, errors.Is(err, usecase.ErrInvalidMessage)).True()
}

func TestHandleTurnRemember(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("remember", 0.95),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"content": "alice lives in tokyo", "people": []string{"alice"}}
		}}),
	)

	reply, err := uc.HandleTurn(ctx, message("remember that alice lives in tokyo"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Got it, I'll remember that.")

	items, err := repo.MemoryItem().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(1)
	gt.Value(t, items[0].Content).Equal("alice lives in tokyo")
}

func TestHandleTurnEnrichment(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
			classification("chat", 0.3), // the answer itself classifies low
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{} // nothing extractable from the first message
		}}),
	)

	reply, err := uc.HandleTurn(ctx, message("add a task"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("What should the task say?")

	session, err := repo.Session().Get(ctx, "chat-1")
	gt.NoError(t, err).Required()
	gt.Value(t, session.State).Equal(types.StateAwaitingClarification)
	gt.Value(t, session.Pending.Kind).Equal(types.PendingEnrichment)

	reply, err = uc.HandleTurn(ctx, message("buy milk"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Task added: buy milk")

	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(1)
	gt.Value(t, tasks[0].Title).Equal("buy milk")

	session, err = repo.Session().Get(ctx, "chat-1")
	gt.NoError(t, err).Required()
	gt.Value(t, session.Pending).Nil()
}

func TestHandleTurnConfirmAndExecute(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	_, err := repo.Task().Create(ctx, "user-1", &model.Task{
		ID:    types.NewTaskID(),
		Title: "buy milk",
	})
	gt.NoError(t, err).Required()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_complete", 0.9),
			classification("chat", 0.2),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"title": "buy milk"}
		}}),
	)

	reply, err := uc.HandleTurn(ctx, message("the milk is done"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal(`Mark the task "buy milk" as done?`)

	reply, err = uc.HandleTurn(ctx, message("yes"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal(`Done! Marked "buy milk" as completed.`)

	open, err := repo.Task().List(ctx, "user-1", interfaces.WithCompleted(false))
	gt.NoError(t, err).Required()
	gt.Array(t, open).Length(0)
}

func TestHandleTurnDenyConfirmation(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	_, err := repo.Task().Create(ctx, "user-1", &model.Task{
		ID:    types.NewTaskID(),
		Title: "buy milk",
	})
	gt.NoError(t, err).Required()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_complete", 0.9),
			classification("chat", 0.2),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"title": "buy milk"}
		}}),
	)

	_, err = uc.HandleTurn(ctx, message("the milk is done"))
	gt.NoError(t, err).Required()

	reply, err := uc.HandleTurn(ctx, message("no"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Okay, I won't.")

	// nothing mutated
	open, err := repo.Task().List(ctx, "user-1", interfaces.WithCompleted(false))
	gt.NoError(t, err).Required()
	gt.Array(t, open).Length(1)
}

func TestHandleTurnCancelPending(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
			classification("cancel", 0.95),
			classification("cancel", 0.95),
		}}),
		usecase.WithExtractor(&stubExtractor{}),
	)

	_, err := uc.HandleTurn(ctx, message("add a task"))
	gt.NoError(t, err).Required()

	reply, err := uc.HandleTurn(ctx, message("forget it"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Okay, cancelled.")

	session, err := repo.Session().Get(ctx, "chat-1")
	gt.NoError(t, err).Required()
	gt.Value(t, session.Pending).Nil()
	gt.Value(t, session.State).Equal(types.StateIdle)

	// cancel with nothing pending
	reply, err = uc.HandleTurn(ctx, message("forget it"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("There's nothing to cancel right now.")
}

func TestHandleTurnUnclearConfirmationGivesUp(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	_, err := repo.Task().Create(ctx, "user-1", &model.Task{
		ID:    types.NewTaskID(),
		Title: "buy milk",
	})
	gt.NoError(t, err).Required()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_complete", 0.9),
			classification(types.IntentUnknown, 0),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"title": "buy milk"}
		}}),
	)

	_, err = uc.HandleTurn(ctx, message("the milk is done"))
	gt.NoError(t, err).Required()

	reply, err := uc.HandleTurn(ctx, message("hmm maybe"))
	gt.NoError(t, err).Required()
	gt.Bool(t, strings.HasPrefix(reply.Text, "Sorry, I need a yes or no.")).True()

	reply, err = uc.HandleTurn(ctx, message("what was the question"))
	gt.NoError(t, err).Required()
	gt.Bool(t, strings.HasPrefix(reply.Text, "Sorry, I need a yes or no.")).True()

	reply, err = uc.HandleTurn(ctx, message("tuesday?"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Let's leave that for now. Just tell me again when you're ready.")

	session, err := repo.Session().Get(ctx, "chat-1")
	gt.NoError(t, err).Required()
	gt.Value(t, session.Pending).Nil()

	// the task never ran
	open, err := repo.Task().List(ctx, "user-1", interfaces.WithCompleted(false))
	gt.NoError(t, err).Required()
	gt.Array(t, open).Length(1)
}

func TestHandleTurnEnrichmentSuperseded(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
			classification("remember", 0.95),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			if tool == model.ToolCreateMemory {
				return map[string]any{"content": "alice lives in tokyo"}
			}
			return map[string]any{}
		}}),
	)

	_, err := uc.HandleTurn(ctx, message("add a task"))
	gt.NoError(t, err).Required()

	// instead of answering the question, the user asks for something else
	reply, err := uc.HandleTurn(ctx, message("oh wait, remember that alice lives in tokyo"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Got it, I'll remember that.")

	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(0)

	items, err := repo.MemoryItem().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(1)
}

func TestHandleTurnIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"title": "buy milk"}
		}}),
	)

	first, err := uc.HandleTurn(ctx, message("remind me to buy milk"))
	gt.NoError(t, err).Required()
	gt.Value(t, first.Text).Equal("Task added: buy milk")

	// a redelivered duplicate replays the recorded result
	second, err := uc.HandleTurn(ctx, message("remind me to buy milk"))
	gt.NoError(t, err).Required()
	gt.Value(t, second.Text).Equal(first.Text)

	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(1)
}

func TestHandleTurnPendingExpiry(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
			classification("chat", 0.2),
		}}),
		usecase.WithExtractor(&stubExtractor{}),
		usecase.WithNow(func() time.Time { return now }),
	)

	reply, err := uc.HandleTurn(ctx, message("add a task"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("What should the task say?")

	// the user comes back well past the pending window
	now = now.Add(15 * time.Minute)

	reply, err = uc.HandleTurn(ctx, message("anyway, how are you?"))
	gt.NoError(t, err).Required()
	gt.Bool(t, strings.HasPrefix(reply.Text, "(I dropped my earlier question since it's been a while.)")).True()

	session, err := repo.Session().Get(ctx, "chat-1")
	gt.NoError(t, err).Required()
	gt.Value(t, session.Pending).Nil()

	// the stale answer did not create a task
	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(0)
}

func TestHandleTurnPendingSurvivesShortDelay(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
			classification("chat", 0.2),
		}}),
		usecase.WithExtractor(&stubExtractor{}),
		usecase.WithNow(func() time.Time { return now }),
	)

	reply, err := uc.HandleTurn(ctx, message("add a task"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("What should the task say?")

	// answering a couple of minutes later is still the answer
	now = now.Add(2 * time.Minute)

	reply, err = uc.HandleTurn(ctx, message("buy milk"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Task added: buy milk")

	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(1)
}

func TestHandleTurnDuePhraseResolved(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	due := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"title": "call the dentist", "due_phrase": "tomorrow at 9"}
		}}),
		usecase.WithTimeResolver(&stubResolver{at: due}),
	)

	reply, err := uc.HandleTurn(ctx, message("remind me to call the dentist tomorrow at 9"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Task added: call the dentist (due Mon Jun 2 09:00)")

	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(1)
	gt.Value(t, tasks[0].DueAt.UTC()).Equal(due)
}

func TestHandleTurnReminderAsksForTime(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	due := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("task_create", 0.9),
		}}),
		usecase.WithExtractor(&stubExtractor{extractFn: func(tool model.ToolName, msg string) map[string]any {
			return map[string]any{"title": "call alex", "reminder": true}
		}}),
		usecase.WithTimeResolver(&stubResolver{at: due}),
	)

	reply, err := uc.HandleTurn(ctx, message("remind me to call alex"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("When should I remind you?")

	reply, err = uc.HandleTurn(ctx, message("tomorrow at 9"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("Task added: call alex (due Tue Jun 3 09:00)")

	tasks, err := repo.Task().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, tasks).Length(1)
	gt.Value(t, tasks[0].DueAt.UTC()).Equal(due)
}

func TestHandleTurnLowConfidenceAsksToClarify(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	var generations atomic.Int64
	llmClient := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					generations.Add(1)
					return &gollem.Response{Texts: []string{"Doing great, thanks!"}}, nil
				},
			}, nil
		},
	}

	uc, err := usecase.New(repo, llmClient,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("remember", 0.4), // below the confidence bar
		}}),
	)
	gt.NoError(t, err).Required()

	reply, err := uc.HandleTurn(ctx, message("put the thing with the stuff"))
	gt.NoError(t, err).Required()
	gt.Value(t, reply.Text).Equal("I'm not quite sure what you'd like me to do. Could you put it another way?")

	// no guessed answer and nothing stored on a low-confidence turn
	gt.Value(t, generations.Load()).Equal(int64(0))
	items, err := repo.MemoryItem().List(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Array(t, items).Length(0)
}

func TestHandleTurnHistoryPersisted(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	uc := newUseCases(t, repo,
		usecase.WithClassifier(&stubClassifier{script: []*model.Classification{
			classification("chat", 0.9),
		}}),
	)

	_, err := uc.HandleTurn(ctx, message("hello"))
	gt.NoError(t, err).Required()

	session, err := repo.Session().Get(ctx, "chat-1")
	gt.NoError(t, err).Required()
	gt.Array(t, session.History).Length(2)
	gt.Value(t, session.History[0].Role).Equal(model.RoleUser)
	gt.Value(t, session.History[0].Text).Equal("hello")
	gt.Value(t, session.History[1].Role).Equal(model.RoleAssistant)
}
