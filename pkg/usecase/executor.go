package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// executeTool runs one mutating operation. Execution is idempotent: a call
// whose idempotency key has been seen returns the recorded result without
// touching any store again. A record is written only after a successful
// mutation, so failed attempts stay retryable.
func (uc *UseCases) executeTool(ctx context.Context, userID types.UserID, chatID types.ChatID, call *model.ToolCall, media *model.MediaRef) (string, error) {
	logger := logging.From(ctx)

	args, err := call.DecodeArgs()
	if err != nil {
		return "", err
	}

	if record, err := uc.repo.Execution().Get(ctx, userID, call.IdempotencyKey); err != nil {
		return "", goerr.Wrap(err, "failed to check execution record")
	} else if record != nil {
		logger.Info("replayed tool call, returning recorded result",
			"tool", call.Tool, "key", call.IdempotencyKey)
		return record.Result, nil
	}

	var result string
	switch typed := args.(type) {
	case *model.CreateMemoryArgs:
		result, err = uc.createMemory(ctx, userID, typed)
	case *model.CreateTaskArgs:
		result, err = uc.createTask(ctx, userID, typed, media)
	case *model.CompleteTaskArgs:
		result, err = uc.completeTask(ctx, userID, typed)
	case *model.AddListItemArgs:
		result, err = uc.addListItem(ctx, userID, typed, media)
	case *model.CompleteListItemArgs:
		result, err = uc.completeListItem(ctx, userID, typed)
	default:
		return "", goerr.New("unhandled tool", goerr.V("tool", call.Tool))
	}
	if err != nil {
		return "", err
	}

	record := &model.ExecutionRecord{
		Key:       call.IdempotencyKey,
		ChatID:    chatID,
		Tool:      call.Tool,
		Result:    result,
		CreatedAt: uc.now(),
	}
	if err := uc.repo.Execution().Put(ctx, userID, record); err != nil {
		// the mutation already happened; losing the record only costs
		// replay protection for this one call
		logger.Warn("failed to store execution record", "error", err.Error(), "tool", call.Tool)
	}

	return result, nil
}

// embeddingFor generates the content embedding used for similarity search
func (uc *UseCases) embeddingFor(ctx context.Context, text string) ([]float32, error) {
	vectors, err := uc.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(vectors) == 0 {
		return nil, goerr.New("no embedding returned")
	}
	embedding := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func (uc *UseCases) createMemory(ctx context.Context, userID types.UserID, args *model.CreateMemoryArgs) (string, error) {
	embedding, err := uc.embeddingFor(ctx, args.Content)
	if err != nil {
		return "", err
	}

	item := &model.MemoryItem{
		ID:        types.NewMemoryItemID(),
		Content:   args.Content,
		People:    args.People,
		Tags:      args.Tags,
		Location:  args.Location,
		Embedding: embedding,
		CreatedAt: uc.now(),
	}
	if _, err := uc.repo.MemoryItem().Create(ctx, userID, item); err != nil {
		return "", goerr.Wrap(err, "failed to store memory item")
	}

	return "Got it, I'll remember that.", nil
}

func (uc *UseCases) createTask(ctx context.Context, userID types.UserID, args *model.CreateTaskArgs, media *model.MediaRef) (string, error) {
	priority, _ := types.ParseTaskPriority(args.Priority)

	task := &model.Task{
		ID:        types.NewTaskID(),
		Title:     args.Title,
		DueAt:     args.Due(),
		Priority:  priority.Normalize(),
		People:    args.People,
		Tags:      args.Tags,
		Media:     media,
		CreatedAt: uc.now(),
	}
	if _, err := uc.repo.Task().Create(ctx, userID, task); err != nil {
		return "", goerr.Wrap(err, "failed to store task")
	}

	if task.DueAt != nil {
		return fmt.Sprintf("Task added: %s (due %s)", task.Title, task.DueAt.Format("Mon Jan 2 15:04")), nil
	}
	return fmt.Sprintf("Task added: %s", task.Title), nil
}

func (uc *UseCases) completeTask(ctx context.Context, userID types.UserID, args *model.CompleteTaskArgs) (string, error) {
	task, err := uc.findOpenTask(ctx, userID, args.Title)
	if err != nil {
		return "", err
	}
	if task == nil {
		return fmt.Sprintf("I couldn't find an open task matching %q.", args.Title), nil
	}

	now := uc.now()
	task.CompletedAt = &now
	if _, err := uc.repo.Task().Update(ctx, userID, task); err != nil {
		return "", goerr.Wrap(err, "failed to complete task")
	}

	return fmt.Sprintf("Done! Marked %q as completed.", task.Title), nil
}

// findOpenTask matches a title against open tasks, preferring an exact
// case-insensitive match over a substring match. Returns nil when nothing
// matches.
func (uc *UseCases) findOpenTask(ctx context.Context, userID types.UserID, title string) (*model.Task, error) {
	tasks, err := uc.repo.Task().List(ctx, userID, interfaces.WithCompleted(false))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks")
	}

	needle := strings.ToLower(strings.TrimSpace(title))
	var partial *model.Task
	for _, task := range tasks {
		haystack := strings.ToLower(task.Title)
		if haystack == needle {
			return task, nil
		}
		if partial == nil && (strings.Contains(haystack, needle) || strings.Contains(needle, haystack)) {
			partial = task
		}
	}
	return partial, nil
}

func (uc *UseCases) addListItem(ctx context.Context, userID types.UserID, args *model.AddListItemArgs, media *model.MediaRef) (string, error) {
	list, err := uc.repo.List().GetListByName(ctx, userID, args.List)
	if err != nil {
		return "", goerr.Wrap(err, "failed to look up list", goerr.V("list", args.List))
	}
	if list == nil {
		// first item under an unknown name creates the list
		list, err = uc.repo.List().CreateList(ctx, userID, &model.List{
			ID:        types.NewListID(),
			Name:      args.List,
			CreatedAt: uc.now(),
		})
		if err != nil {
			return "", goerr.Wrap(err, "failed to create list", goerr.V("list", args.List))
		}
	}

	item := &model.ListItem{
		ID:        types.NewListItemID(),
		ListID:    list.ID,
		Text:      args.Text,
		Tags:      args.Tags,
		Media:     media,
		CreatedAt: uc.now(),
	}
	if _, err := uc.repo.List().AddItem(ctx, userID, item); err != nil {
		return "", goerr.Wrap(err, "failed to add list item")
	}

	return fmt.Sprintf("Added %q to your %s list.", item.Text, list.Name), nil
}

func (uc *UseCases) completeListItem(ctx context.Context, userID types.UserID, args *model.CompleteListItemArgs) (string, error) {
	list, err := uc.repo.List().GetListByName(ctx, userID, args.List)
	if err != nil {
		return "", goerr.Wrap(err, "failed to look up list", goerr.V("list", args.List))
	}
	if list == nil {
		return fmt.Sprintf("I don't have a list called %q.", args.List), nil
	}

	items, err := uc.repo.List().Items(ctx, userID, list.ID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to load list items")
	}

	needle := strings.ToLower(strings.TrimSpace(args.Text))
	var match *model.ListItem
	for _, item := range items {
		if item.Completed {
			continue
		}
		haystack := strings.ToLower(item.Text)
		if haystack == needle {
			match = item
			break
		}
		if match == nil && (strings.Contains(haystack, needle) || strings.Contains(needle, haystack)) {
			match = item
		}
	}
	if match == nil {
		return fmt.Sprintf("I couldn't find %q on your %s list.", args.Text, list.Name), nil
	}

	match.Completed = true
	if _, err := uc.repo.List().UpdateItem(ctx, userID, match); err != nil {
		return "", goerr.Wrap(err, "failed to complete list item")
	}

	return fmt.Sprintf("Checked off %q from your %s list.", match.Text, list.Name), nil
}

// renderDue formats a due time for replies
func renderDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("Mon Jan 2 15:04")
}
