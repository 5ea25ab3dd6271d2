package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/interfaces"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// intentTools maps actionable intent labels to the tool they drive. Intents
// absent here (recall, task_list, list_show, chat) read data instead of
// mutating it.
var intentTools = map[types.Intent]model.ToolName{
	"remember":      model.ToolCreateMemory,
	"task_create":   model.ToolCreateTask,
	"task_complete": model.ToolCompleteTask,
	"list_add":      model.ToolAddListItem,
	"list_complete": model.ToolCompleteListItem,
}

// requiredFields lists the argument fields a tool cannot run without. These
// drive the enrichment sub-dialog: a missing field becomes a question.
var requiredFields = map[model.ToolName][]string{
	model.ToolCreateMemory:     {"content"},
	model.ToolCreateTask:       {"title"},
	model.ToolCompleteTask:     {"title"},
	model.ToolAddListItem:      {"list", "text"},
	model.ToolCompleteListItem: {"list", "text"},
}

// fieldQuestions are the clarification questions per tool and field
var fieldQuestions = map[model.ToolName]map[string]string{
	model.ToolCreateMemory: {
		"content": "What exactly should I remember?",
	},
	model.ToolCreateTask: {
		"title":      "What should the task say?",
		"due_phrase": "When should I remind you?",
	},
	model.ToolCompleteTask: {
		"title": "Which task is done?",
	},
	model.ToolAddListItem: {
		"list": "Which list should that go on?",
		"text": "What should I add to the list?",
	},
	model.ToolCompleteListItem: {
		"list": "Which list is that item on?",
		"text": "Which item is done?",
	},
}

func questionFor(tool model.ToolName, field string) string {
	if byField, ok := fieldQuestions[tool]; ok {
		if q, ok := byField[field]; ok {
			return q
		}
	}
	return fmt.Sprintf("I still need the %s. What is it?", field)
}

// needsDueTime reports whether a task was requested as a reminder but still
// has no resolved due time
func needsDueTime(args map[string]any) bool {
	if _, ok := args["due_at"]; ok {
		return false
	}
	reminder, ok := args["reminder"].(bool)
	return ok && reminder
}

// firstMissingField returns the first required field args does not carry
func firstMissingField(tool model.ToolName, args map[string]any) string {
	for _, field := range requiredFields[tool] {
		v, ok := args[field]
		if !ok {
			return field
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return field
		}
	}
	return ""
}

// dispatch routes a classified intent with no pending dialog in the way
func (uc *UseCases) dispatch(ctx context.Context, session *model.ConversationSession, it types.Intent, msg *model.IncomingMessage) (*model.Reply, error) {
	if tool, ok := intentTools[it]; ok {
		return uc.handleToolIntent(ctx, session, tool, msg)
	}

	switch it {
	case "recall":
		return uc.handleRecall(ctx, session, msg.Text)
	case "task_list":
		return uc.handleTaskList(ctx, session.UserID)
	case "list_show":
		return uc.handleListShow(ctx, session.UserID, msg.Text)
	default:
		return uc.handleChat(ctx, session, msg.Text)
	}
}

// handleToolIntent extracts arguments for a mutating tool and either runs it,
// asks for confirmation, or opens an enrichment sub-dialog for the first
// missing required field.
func (uc *UseCases) handleToolIntent(ctx context.Context, session *model.ConversationSession, tool model.ToolName, msg *model.IncomingMessage) (*model.Reply, error) {
	args, err := uc.extractor.Extract(ctx, tool, msg.Text, session.History)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract tool arguments", goerr.V("tool", tool))
	}

	return uc.advanceTool(ctx, session, tool, args, msg.Media, 0)
}

// advanceTool takes the current argument set for a tool as far as it can go:
// ask for a missing field, ask for confirmation, or execute.
func (uc *UseCases) advanceTool(ctx context.Context, session *model.ConversationSession, tool model.ToolName, args map[string]any, media *model.MediaRef, attempts int) (*model.Reply, error) {
	if tool == model.ToolCreateTask {
		if err := uc.resolveDuePhrase(ctx, args); err != nil {
			return nil, err
		}
	}

	if field := firstMissingField(tool, args); field != "" {
		question := questionFor(tool, field)
		session.SetPending(&model.PendingAction{
			Kind:         types.PendingEnrichment,
			Tool:         tool,
			PartialData:  args,
			MissingField: field,
			Attempts:     attempts,
			CreatedAt:    uc.now(),
		})
		session.LastQuestion = question
		return &model.Reply{Text: question}, nil
	}

	if tool == model.ToolCreateTask {
		// a reminder without a time is not actionable yet; ask, but give
		// up on the time after the usual attempt bound
		if needsDueTime(args) && attempts < uc.cfg.MaxClarificationAttempts {
			question := questionFor(tool, "due_phrase")
			session.SetPending(&model.PendingAction{
				Kind:         types.PendingEnrichment,
				Tool:         tool,
				PartialData:  args,
				MissingField: "due_phrase",
				Attempts:     attempts,
				CreatedAt:    uc.now(),
			})
			session.LastQuestion = question
			return &model.Reply{Text: question}, nil
		}
		delete(args, "reminder")
	}

	if tool.Destructive() {
		question := uc.confirmationQuestion(tool, args)
		session.SetPending(&model.PendingAction{
			Kind:        types.PendingConfirmation,
			Tool:        tool,
			PartialData: args,
			Attempts:    attempts,
			CreatedAt:   uc.now(),
		})
		session.LastQuestion = question
		return &model.Reply{Text: question}, nil
	}

	return uc.runTool(ctx, session, tool, args, media)
}

// runTool executes a complete, confirmed tool call and resets dialog state
func (uc *UseCases) runTool(ctx context.Context, session *model.ConversationSession, tool model.ToolName, args map[string]any, media *model.MediaRef) (*model.Reply, error) {
	session.State = types.StateExecuting
	call := model.NewToolCall(session.ChatID, tool, args)

	result, err := uc.executeTool(ctx, session.UserID, session.ChatID, call, media)
	session.ClearPending()
	if err != nil {
		return nil, err
	}

	reply := &model.Reply{Text: result}
	if media != nil {
		reply.AttachmentType = media.Type
	}
	return reply, nil
}

// resolveDuePhrase turns the extracted due phrase into an absolute RFC 3339
// due_at. An unresolvable phrase is dropped rather than failing the task.
func (uc *UseCases) resolveDuePhrase(ctx context.Context, args map[string]any) error {
	phrase, ok := args["due_phrase"].(string)
	delete(args, "due_phrase")
	if !ok || strings.TrimSpace(phrase) == "" {
		return nil
	}

	due, err := uc.timeResolver.Resolve(ctx, phrase, uc.now())
	if err != nil {
		logging.From(ctx).Warn("could not resolve due phrase, creating task without due time",
			"phrase", phrase, "error", err.Error())
		return nil
	}

	args["due_at"] = due.Format(time.RFC3339)
	return nil
}

// confirmationQuestion phrases the yes/no gate before a destructive tool
func (uc *UseCases) confirmationQuestion(tool model.ToolName, args map[string]any) string {
	switch tool {
	case model.ToolCompleteTask:
		return fmt.Sprintf("Mark the task %q as done?", stringArg(args, "title"))
	case model.ToolCompleteListItem:
		return fmt.Sprintf("Check off %q from your %s list?", stringArg(args, "text"), stringArg(args, "list"))
	default:
		return "Should I go ahead?"
	}
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

// handleRecall answers a data question through the retrieval pipeline:
// relevance rating, gated source search, then aggregation with fallback.
func (uc *UseCases) handleRecall(ctx context.Context, session *model.ConversationSession, query string) (*model.Reply, error) {
	strategy, err := uc.coordinator.Plan(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to plan retrieval")
	}

	outcome := uc.dispatcher.Run(ctx, session.UserID, strategy)

	answer, err := uc.aggregator.Respond(ctx, query, outcome.Results)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to aggregate retrieval results")
	}

	return &model.Reply{Text: answer}, nil
}

func (uc *UseCases) handleTaskList(ctx context.Context, userID types.UserID) (*model.Reply, error) {
	tasks, err := uc.repo.Task().List(ctx, userID, interfaces.WithCompleted(false))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks")
	}

	if len(tasks) == 0 {
		return &model.Reply{Text: "You have no open tasks."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Your open tasks:\n")
	for _, task := range tasks {
		sb.WriteString("- ")
		sb.WriteString(task.Title)
		if task.DueAt != nil {
			sb.WriteString(" (due ")
			sb.WriteString(renderDue(task.DueAt))
			sb.WriteString(")")
		}
		if task.Priority == types.PriorityHigh {
			sb.WriteString(" [high]")
		}
		sb.WriteString("\n")
	}
	return &model.Reply{Text: strings.TrimRight(sb.String(), "\n")}, nil
}

// handleListShow shows a list named in the message, or an overview of all
// lists when no known name appears. Name matching is a plain substring check
// against existing lists; no model call is needed to display data.
func (uc *UseCases) handleListShow(ctx context.Context, userID types.UserID, text string) (*model.Reply, error) {
	lists, err := uc.repo.List().Lists(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load lists")
	}
	if len(lists) == 0 {
		return &model.Reply{Text: "You don't have any lists yet."}, nil
	}

	lowered := strings.ToLower(text)
	for _, list := range lists {
		if !strings.Contains(lowered, strings.ToLower(list.Name)) {
			continue
		}
		items, err := uc.repo.List().Items(ctx, userID, list.ID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load list items", goerr.V("list", list.Name))
		}
		return &model.Reply{Text: renderList(list, items)}, nil
	}

	var sb strings.Builder
	sb.WriteString("Your lists:\n")
	for _, list := range lists {
		items, err := uc.repo.List().Items(ctx, userID, list.ID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load list items", goerr.V("list", list.Name))
		}
		open := 0
		for _, item := range items {
			if !item.Completed {
				open++
			}
		}
		fmt.Fprintf(&sb, "- %s (%d open)\n", list.Name, open)
	}
	return &model.Reply{Text: strings.TrimRight(sb.String(), "\n")}, nil
}

func renderList(list *model.List, items []*model.ListItem) string {
	if len(items) == 0 {
		return fmt.Sprintf("Your %s list is empty.", list.Name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your %s list:\n", list.Name)
	for _, item := range items {
		if item.Completed {
			fmt.Fprintf(&sb, "- %s (done)\n", item.Text)
		} else {
			fmt.Fprintf(&sb, "- %s\n", item.Text)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// handleChat is plain conversation: no store access, just a conversational
// completion over the recent history.
func (uc *UseCases) handleChat(ctx context.Context, session *model.ConversationSession, text string) (*model.Reply, error) {
	llmSession, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt("You are a friendly personal assistant. Keep replies short and conversational."),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session for chat")
	}

	var sb strings.Builder
	for _, turn := range session.History {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("user: ")
	sb.WriteString(text)

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(sb.String()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate chat reply")
	}
	if len(resp.Texts) == 0 {
		return &model.Reply{Text: replyNotUnderstood}, nil
	}

	return &model.Reply{Text: strings.Join(resp.Texts, "\n")}, nil
}
