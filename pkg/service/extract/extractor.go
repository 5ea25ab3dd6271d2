package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// maxHistoryTurns bounds how much conversation context goes into the
// extraction prompt
const maxHistoryTurns = 6

// Extractor pulls typed tool arguments out of a natural language message.
// Fields the message does not state are omitted from the result, never
// guessed; deciding what is missing is the caller's job.
type Extractor interface {
	Extract(ctx context.Context, tool model.ToolName, message string, history []model.Turn) (map[string]any, error)
}

type client struct {
	llmClient gollem.LLMClient
}

// New creates a new argument extractor
func New(llmClient gollem.LLMClient) (Extractor, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &client{llmClient: llmClient}, nil
}

func stringParam(desc string) *gollem.Parameter {
	return &gollem.Parameter{Type: gollem.TypeString, Description: desc}
}

func stringArrayParam(desc string) *gollem.Parameter {
	return &gollem.Parameter{
		Type:        gollem.TypeArray,
		Description: desc,
		Items:       &gollem.Parameter{Type: gollem.TypeString},
	}
}

// toolSchemas maps each tool to the JSON shape the model fills in. Times stay
// as verbatim phrases ("tomorrow at 9"); resolution to timestamps happens
// elsewhere.
var toolSchemas = map[model.ToolName]*gollem.Parameter{
	model.ToolCreateMemory: {
		Title: "MemoryFact",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"content":  stringParam("The fact to remember, restated as a short self-contained sentence"),
			"people":   stringArrayParam("Names of people the fact mentions"),
			"tags":     stringArrayParam("Short topic tags for the fact"),
			"location": stringParam("Place the fact mentions, if any"),
		},
	},
	model.ToolCreateTask: {
		Title: "NewTask",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"title":      stringParam("Short imperative title of the task"),
			"due_phrase": stringParam("The due time exactly as the user phrased it, if any"),
			"reminder":   {Type: gollem.TypeBoolean, Description: "True when the user asked to be reminded, so a due time matters"},
			"priority":   {Type: gollem.TypeString, Description: "Task priority if the user stated urgency", Enum: []string{"low", "normal", "high"}},
			"people":     stringArrayParam("Names of people the task involves"),
			"tags":       stringArrayParam("Short topic tags for the task"),
		},
	},
	model.ToolCompleteTask: {
		Title: "CompletedTask",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"title": stringParam("The task the user says is done, as close to its original title as possible"),
		},
	},
	model.ToolAddListItem: {
		Title: "NewListItem",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"list": stringParam("Name of the list the item belongs on"),
			"text": stringParam("The item to add"),
			"tags": stringArrayParam("Short topic tags for the item"),
		},
	},
	model.ToolCompleteListItem: {
		Title: "CompletedListItem",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"list": stringParam("Name of the list the item is on"),
			"text": stringParam("The item the user says is done"),
		},
	},
}

func buildPrompt(message string, history []model.Turn, strict bool) string {
	var sb strings.Builder
	sb.WriteString("Extract the requested fields from the user's message.\n")
	sb.WriteString("Only include a field when the message (or the recent conversation) actually states it. ")
	sb.WriteString("Leave out anything not stated. Never invent values.\n")
	if strict {
		sb.WriteString("Respond with ONLY a JSON object matching the schema. No prose, no code fences.\n")
	}
	sb.WriteString("\n")

	if len(history) > 0 {
		start := 0
		if len(history) > maxHistoryTurns {
			start = len(history) - maxHistoryTurns
		}
		sb.WriteString("Recent conversation:\n")
		for _, turn := range history[start:] {
			sb.WriteString(string(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(turn.Text)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Message: ")
	sb.WriteString(message)
	return sb.String()
}

func (c *client) Extract(ctx context.Context, tool model.ToolName, message string, history []model.Turn) (map[string]any, error) {
	logger := logging.From(ctx)

	schema, ok := toolSchemas[tool]
	if !ok {
		return nil, goerr.New("no extraction schema for tool", goerr.V("tool", tool))
	}

	resp, err := c.generate(ctx, schema, buildPrompt(message, history, false))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract tool arguments", goerr.V("tool", tool))
	}

	parsed, parseErr := parseArgs(resp)
	if parseErr != nil {
		// One retry with a stricter prompt before giving up on extraction
		logger.Warn("failed to parse extraction, retrying with strict prompt",
			"tool", tool, "error", parseErr.Error())

		resp, err = c.generate(ctx, schema, buildPrompt(message, history, true))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to extract tool arguments", goerr.V("tool", tool))
		}
		parsed, parseErr = parseArgs(resp)
		if parseErr != nil {
			// empty args make the caller ask the user field by field
			logger.Warn("extraction output unparsable after retry, asking the user instead",
				"tool", tool, "error", parseErr.Error())
			return map[string]any{}, nil
		}
	}

	return prune(parsed), nil
}

func (c *client) generate(ctx context.Context, schema *gollem.Parameter, prompt string) (*gollem.Response, error) {
	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session for extraction")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate extraction")
	}

	return resp, nil
}

func parseArgs(resp *gollem.Response) (map[string]any, error) {
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.New("empty extraction response")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse extraction response", goerr.V("response", resp.Texts[0]))
	}

	return parsed, nil
}

// prune drops empty strings and empty arrays so absent fields look absent
func prune(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) == "" {
				continue
			}
			out[k] = strings.TrimSpace(val)
		case []any:
			if len(val) == 0 {
				continue
			}
			out[k] = val
		case nil:
			continue
		default:
			out[k] = v
		}
	}
	return out
}
