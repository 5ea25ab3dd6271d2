package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// maxHistoryTurns limits how many recent turns are rendered into the prompt
const maxHistoryTurns = 6

type client struct {
	llmClient gollem.LLMClient
	labels    []Label
}

// New creates a new intent classifier with the configured label set
func New(llmClient gollem.LLMClient, labels []Label) (Classifier, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	if len(labels) == 0 {
		return nil, goerr.New("at least one intent label is required")
	}

	return &client{
		llmClient: llmClient,
		labels:    labels,
	}, nil
}

// llmResponse is the structured output from the LLM
type llmResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *client) Classify(ctx context.Context, message string, history []model.Turn) (*model.Classification, error) {
	logger := logging.From(ctx)

	systemPrompt := c.buildSystemPrompt(false)
	userPrompt := buildUserPrompt(message, history)
	schema := c.buildResponseSchema()

	resp, err := c.generate(ctx, systemPrompt, userPrompt, schema)
	if err != nil {
		return nil, err
	}

	parsed, parseErr := parseResponse(resp)
	if parseErr != nil {
		// One retry with a stricter prompt before giving up on extraction
		logger.Warn("failed to parse classification, retrying with strict prompt", "error", parseErr.Error())

		resp, err = c.generate(ctx, c.buildSystemPrompt(true), userPrompt, schema)
		if err != nil {
			return nil, err
		}
		parsed, parseErr = parseResponse(resp)
		if parseErr != nil {
			logger.Warn("classification output unparsable after retry", "error", parseErr.Error())
			return &model.Classification{Intent: types.IntentUnknown, Confidence: 0}, nil
		}
	}

	label := types.Intent(parsed.Intent).Normalize()
	if !c.knownLabel(label) {
		logger.Warn("classifier returned unknown label", "label", parsed.Intent)
		return &model.Classification{Intent: types.IntentUnknown, Confidence: 0}, nil
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &model.Classification{Intent: label, Confidence: confidence}, nil
}

func (c *client) generate(ctx context.Context, systemPrompt, userPrompt string, schema *gollem.Parameter) (*gollem.Response, error) {
	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate classification")
	}

	return resp, nil
}

func parseResponse(resp *gollem.Response) (*llmResponse, error) {
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.New("empty classification response")
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse classification response", goerr.V("response", resp.Texts[0]))
	}
	if parsed.Intent == "" {
		return nil, goerr.New("classification response missing intent", goerr.V("response", resp.Texts[0]))
	}

	return &parsed, nil
}

func (c *client) knownLabel(label types.Intent) bool {
	if label == types.IntentUnknown {
		return true
	}
	for _, l := range c.labels {
		if types.Intent(l.Name).Normalize() == label {
			return true
		}
	}
	return false
}

func (c *client) buildSystemPrompt(strict bool) string {
	var sb strings.Builder

	sb.WriteString("You are an intent classifier for a personal assistant. Determine what the user wants based on the meaning of the message, not on surface keywords. Messages may be paraphrased or mix languages.\n\n")
	sb.WriteString("## Intents:\n\n")
	for _, label := range c.labels {
		fmt.Fprintf(&sb, "- %s: %s\n", label.Name, label.Description)
	}
	sb.WriteString("- unknown: the message fits none of the above\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Pick exactly one intent from the list.\n")
	sb.WriteString("2. Report your confidence as a number between 0 and 1.\n")
	sb.WriteString("3. Use the recent conversation to resolve references like \"that one\" or \"the second\".\n")

	if strict {
		sb.WriteString("\nRespond with ONLY a JSON object of the form {\"intent\": \"<label>\", \"confidence\": <number>}. No prose, no code fences.\n")
	}

	return sb.String()
}

func buildUserPrompt(message string, history []model.Turn) string {
	var sb strings.Builder

	if len(history) > 0 {
		start := 0
		if len(history) > maxHistoryTurns {
			start = len(history) - maxHistoryTurns
		}
		sb.WriteString("## Recent conversation:\n\n")
		for _, turn := range history[start:] {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Message to classify:\n\n")
	sb.WriteString(message)
	sb.WriteString("\n")

	return sb.String()
}

func (c *client) buildResponseSchema() *gollem.Parameter {
	labelNames := make([]string, 0, len(c.labels)+1)
	for _, label := range c.labels {
		labelNames = append(labelNames, label.Name)
	}
	labelNames = append(labelNames, "unknown")

	return &gollem.Parameter{
		Title:       "IntentClassification",
		Description: "The classified intent of the user message",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"intent": {
				Type:        gollem.TypeString,
				Description: "The intent label",
				Enum:        labelNames,
				Required:    true,
			},
			"confidence": {
				Type:        gollem.TypeNumber,
				Description: "Confidence between 0 and 1",
				Required:    true,
			},
		},
	}
}
