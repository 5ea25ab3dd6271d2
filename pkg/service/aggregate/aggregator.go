package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// NoMatchReply is the answer for a personal query with no store hit. The
// assistant says it does not know rather than inventing a plausible fact.
const NoMatchReply = "I don't have that in your saved information. Could you give me more detail?"

// generalKnowledgePrefix keeps it transparent that the answer comes from the
// model, not from the user's own data
const generalKnowledgePrefix = "(from general knowledge, not your saved data)\n"

// Aggregator merges search results into a final response, applying the
// fallback policy when nothing was found
type Aggregator interface {
	Respond(ctx context.Context, query string, results []*model.SearchResult) (string, error)
}

type client struct {
	llmClient gollem.LLMClient
}

// New creates a new aggregator
func New(llmClient gollem.LLMClient) (Aggregator, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &client{llmClient: llmClient}, nil
}

func (c *client) Respond(ctx context.Context, query string, results []*model.SearchResult) (string, error) {
	nonEmpty := make([]*model.SearchResult, 0, len(results))
	for _, r := range results {
		if !r.Empty() {
			nonEmpty = append(nonEmpty, r)
		}
	}

	if len(nonEmpty) > 0 {
		return render(dedupe(nonEmpty)), nil
	}

	return c.fallback(ctx, query)
}

// dedupe drops items whose text is a near-duplicate of an already seen item
// across all sources, keeping the higher-scored occurrence. Sources are
// processed best first so the kept copy is the strongest hit.
func dedupe(results []*model.SearchResult) []*model.SearchResult {
	ordered := make([]*model.SearchResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BestScore() > ordered[j].BestScore()
	})

	var seen []string
	deduped := make([]*model.SearchResult, 0, len(ordered))
	for _, r := range ordered {
		kept := &model.SearchResult{Source: r.Source}
		items := make([]model.ScoredItem, len(r.Items))
		copy(items, r.Items)
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Score > items[j].Score
		})

		for _, item := range items {
			if isDuplicate(item.Text, seen) {
				continue
			}
			seen = append(seen, item.Text)
			kept.Items = append(kept.Items, item)
		}
		if !kept.Empty() {
			deduped = append(deduped, kept)
		}
	}

	return deduped
}

// isDuplicate compares normalized token sets with a Jaccard similarity bar
func isDuplicate(text string, seen []string) bool {
	for _, s := range seen {
		if jaccard(tokens(text), tokens(s)) >= 0.8 {
			return true
		}
	}
	return false
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, `,.!?;:"'()[]`)
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	var intersection int
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var sourceHeadings = map[types.Source]string{
	types.SourceMemory: "From your memory:",
	types.SourceTasks:  "From your tasks:",
	types.SourceLists:  "From your lists:",
}

// render produces the grouped response. Only store-backed item text is ever
// printed here; the renderer has no access to the model.
func render(results []*model.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		heading := sourceHeadings[r.Source]
		if heading == "" {
			heading = fmt.Sprintf("From %s:", r.Source)
		}
		sb.WriteString(heading)
		sb.WriteString("\n")
		for _, item := range r.Items {
			sb.WriteString("- ")
			sb.WriteString(item.Text)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// llmQueryKind is the structured output of the fallback classification
type llmQueryKind struct {
	Kind string `json:"kind"`
}

// fallback decides between a best-effort general-knowledge answer and an
// explicit "don't know". A personal query must never get an invented answer,
// so any ambiguity resolves to the no-match reply.
func (c *client) fallback(ctx context.Context, query string) (string, error) {
	logger := logging.From(ctx)

	kind, err := c.classifyQuery(ctx, query)
	if err != nil {
		logger.Warn("fallback classification failed, treating query as personal", "error", err.Error())
		return NoMatchReply, nil
	}

	if kind != "general" {
		return NoMatchReply, nil
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt("You are a helpful personal assistant. Answer the question concisely from your own knowledge."),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session for fallback answer")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(query))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate fallback answer")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty fallback answer")
	}

	return generalKnowledgePrefix + strings.Join(resp.Texts, "\n"), nil
}

func (c *client) classifyQuery(ctx context.Context, query string) (string, error) {
	schema := &gollem.Parameter{
		Title:       "QueryKind",
		Description: "Whether the query asks about general knowledge or the user's personal data",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"kind": {
				Type:        gollem.TypeString,
				Description: "general for world knowledge, personal for the user's own data",
				Enum:        []string{"general", "personal"},
				Required:    true,
			},
		},
	}

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
		gollem.WithSessionSystemPrompt("Classify whether the question can be answered from general world knowledge, or whether it asks about the user's personal notes, tasks, or lists."),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session for query classification")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(query))
	if err != nil {
		return "", goerr.Wrap(err, "failed to classify query kind")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty query kind response")
	}

	var parsed llmQueryKind
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to parse query kind", goerr.V("response", resp.Texts[0]))
	}

	return parsed.Kind, nil
}
