package timeparse

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// ErrUnresolvable indicates the expression does not describe a point in time
var ErrUnresolvable = goerr.New("time expression could not be resolved")

// Resolver turns natural language time expressions ("tomorrow at 9",
// "next friday") into absolute timestamps relative to a reference time.
type Resolver interface {
	Resolve(ctx context.Context, expr string, now time.Time) (time.Time, error)
}

type client struct {
	llmClient gollem.LLMClient
}

// New creates a new time expression resolver
func New(llmClient gollem.LLMClient) (Resolver, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &client{llmClient: llmClient}, nil
}

type llmResolvedTime struct {
	DateTime string `json:"datetime"`
}

func buildPrompt(expr string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("Resolve the following time expression into an absolute timestamp.\n\n")
	sb.WriteString("Current time: ")
	sb.WriteString(now.Format(time.RFC3339))
	sb.WriteString(" (")
	sb.WriteString(now.Weekday().String())
	sb.WriteString(")\n")
	sb.WriteString("Expression: ")
	sb.WriteString(expr)
	sb.WriteString("\n\n")
	sb.WriteString("Return the resolved timestamp in RFC3339 format using the same timezone offset as the current time. ")
	sb.WriteString("If the expression does not describe a point in time, return an empty string.")
	return sb.String()
}

func (c *client) Resolve(ctx context.Context, expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, goerr.Wrap(ErrUnresolvable, "empty expression")
	}

	schema := &gollem.Parameter{
		Title:       "ResolvedTime",
		Description: "Absolute timestamp resolved from a natural language expression",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"datetime": {
				Type:        gollem.TypeString,
				Description: "RFC3339 timestamp, or empty string if the expression is not a time",
				Required:    true,
			},
		},
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
	)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to create LLM session for time resolution")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildPrompt(expr, now)))
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to resolve time expression")
	}
	if len(resp.Texts) == 0 {
		return time.Time{}, goerr.New("empty time resolution response")
	}

	var parsed llmResolvedTime
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to parse time resolution", goerr.V("response", resp.Texts[0]))
	}
	if strings.TrimSpace(parsed.DateTime) == "" {
		return time.Time{}, goerr.Wrap(ErrUnresolvable, "no timestamp in expression", goerr.V("expr", expr))
	}

	resolved, err := time.Parse(time.RFC3339, parsed.DateTime)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid timestamp in time resolution", goerr.V("response", parsed.DateTime))
	}

	return resolved, nil
}
