package relevance

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/logging"
)

// Coordinator rates how relevant each data source is to a query and extracts
// search terms and entities for the searchers
type Coordinator interface {
	Plan(ctx context.Context, query string) (*model.SearchStrategy, error)
}

type client struct {
	llmClient gollem.LLMClient
}

// New creates a new relevance coordinator
func New(llmClient gollem.LLMClient) (Coordinator, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &client{llmClient: llmClient}, nil
}

// llmSourcePlan is one source rating in the structured output
type llmSourcePlan struct {
	Tier  string   `json:"tier"`
	Terms []string `json:"terms"`
}

// llmResponse is the structured output from the LLM
type llmResponse struct {
	Memory    llmSourcePlan `json:"memory"`
	Tasks     llmSourcePlan `json:"tasks"`
	Lists     llmSourcePlan `json:"lists"`
	People    []string      `json:"people"`
	Locations []string      `json:"locations"`
	Dates     []string      `json:"dates"`
}

func (c *client) Plan(ctx context.Context, query string) (*model.SearchStrategy, error) {
	logger := logging.From(ctx)

	session, err := c.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt()),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text("Query: "+query))
	if err != nil {
		// The plan must never block retrieval: fall back to searching
		// every source with the raw query.
		logger.Warn("relevance planning failed, assuming all sources primary", "error", err.Error())
		return fallbackStrategy(query), nil
	}

	if len(resp.Texts) == 0 {
		logger.Warn("empty relevance plan, assuming all sources primary")
		return fallbackStrategy(query), nil
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		logger.Warn("unparsable relevance plan, assuming all sources primary",
			"error", err.Error(), "response", resp.Texts[0])
		return fallbackStrategy(query), nil
	}

	strategy := &model.SearchStrategy{
		Query: query,
		Entities: model.Entities{
			People:    parsed.People,
			Locations: parsed.Locations,
			Dates:     parsed.Dates,
		},
		Sources: map[types.Source]model.SourcePlan{
			types.SourceMemory: toSourcePlan(parsed.Memory, query),
			types.SourceTasks:  toSourcePlan(parsed.Tasks, query),
			types.SourceLists:  toSourcePlan(parsed.Lists, query),
		},
	}

	return strategy, nil
}

// toSourcePlan converts one rated source, parsing the tier defensively. A
// plan with an explicit tier but no terms gets the raw query as its term.
func toSourcePlan(p llmSourcePlan, query string) model.SourcePlan {
	tier := parseTier(p.Tier)
	terms := p.Terms
	if tier.Searchable() && len(terms) == 0 {
		terms = []string{query}
	}
	return model.SourcePlan{Tier: tier, Terms: terms}
}

// parseTier applies the defensive grammar. An entirely empty rating means
// the model omitted the source, which reads as "not relevant"; anything else
// unrecognized fails open to primary via types.ParseRelevanceTier.
func parseTier(s string) types.RelevanceTier {
	if strings.TrimSpace(s) == "" {
		return types.TierNone
	}
	return types.ParseRelevanceTier(s)
}

func fallbackStrategy(query string) *model.SearchStrategy {
	sources := make(map[types.Source]model.SourcePlan, len(types.AllSources()))
	for _, src := range types.AllSources() {
		sources[src] = model.SourcePlan{
			Tier:  types.TierPrimary,
			Terms: []string{query},
		}
	}
	return &model.SearchStrategy{Query: query, Sources: sources}
}

func systemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are a retrieval planner for a personal assistant. The assistant has three data sources:\n\n")
	sb.WriteString("- memory: free-form personal facts the user asked to remember (people, places, preferences, notes)\n")
	sb.WriteString("- tasks: reminders and todos with due dates\n")
	sb.WriteString("- lists: named lists of items (shopping, packing, ...)\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. For each source, rate how likely it is to answer the query: primary, secondary, tertiary, or none.\n")
	sb.WriteString("2. Questions that need no personal data at all (greetings, general knowledge) rate none for every source.\n")
	sb.WriteString("3. For each source rated above none, give 1-3 short search terms.\n")
	sb.WriteString("4. Extract any people, locations, and date expressions mentioned in the query.\n")

	return sb.String()
}

func buildResponseSchema() *gollem.Parameter {
	tierParam := func(source string) *gollem.Parameter {
		return &gollem.Parameter{
			Type: gollem.TypeObject,
			Properties: map[string]*gollem.Parameter{
				"tier": {
					Type:        gollem.TypeString,
					Description: "Relevance of the " + source + " source: primary, secondary, tertiary, or none",
					Required:    true,
				},
				"terms": {
					Type:        gollem.TypeArray,
					Description: "Search terms for the " + source + " source",
					Items:       &gollem.Parameter{Type: gollem.TypeString},
				},
			},
			Required: true,
		}
	}

	stringArray := func(desc string) *gollem.Parameter {
		return &gollem.Parameter{
			Type:        gollem.TypeArray,
			Description: desc,
			Items:       &gollem.Parameter{Type: gollem.TypeString},
		}
	}

	return &gollem.Parameter{
		Title:       "SearchPlan",
		Description: "Per-source relevance ratings and extracted entities",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"memory":    tierParam("memory"),
			"tasks":     tierParam("tasks"),
			"lists":     tierParam("lists"),
			"people":    stringArray("Person names mentioned in the query"),
			"locations": stringArray("Locations mentioned in the query"),
			"dates":     stringArray("Date expressions mentioned in the query"),
		},
	}
}
