package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// charsPerToken approximates the token budget in characters.
const charsPerToken = 4

// analysisResponse is the exact shape the analyzer prompt asks for.
type analysisResponse struct {
	KeyConcepts  []string `json:"key_concepts"`
	Rules        []string `json:"rules"`
	ExampleSeeds []string `json:"example_seeds"`
	Constraints  []string `json:"constraints"`
	Terminology  []string `json:"terminology"`
}

var analysisKeys = []string{"key_concepts", "rules", "example_seeds", "constraints", "terminology"}

// AnalyzeResult is the analyzer's output for one run.
type AnalyzeResult struct {
	Analysis domain.ContextAnalysis
	// Items are the retrieved context items, in rank order.
	Items []domain.ScoredItem
	// Warnings record degraded outcomes. They never fail the run.
	Warnings []string
}

// References converts the retrieved items into draft references.
func (r AnalyzeResult) References() []domain.Reference {
	refs := make([]domain.Reference, 0, len(r.Items))
	for _, it := range r.Items {
		refs = append(refs, domain.Reference{
			ContextItemID: it.Item.ID,
			SourceName:    it.Item.Metadata.SourceName,
			Similarity:    it.Similarity,
		})
	}
	return refs
}

// Analyzer extracts concepts, rules and terminology from a protocol's
// ingested context.
type Analyzer struct {
	query  *ContextQuery
	caller *structuredCaller
	topK   int
	budget int
}

// NewAnalyzer creates an analyzer using settings for top-k and token budget.
func NewAnalyzer(llm driven.LLMService, query *ContextQuery, settings domain.PipelineSettings) *Analyzer {
	settings = settings.WithDefaults()
	return &Analyzer{
		query:  query,
		caller: &structuredCaller{llm: llm},
		topK:   settings.TopK,
		budget: settings.ContextTokenBudget * charsPerToken,
	}
}

// SetPromptStore sets the prompt store for customisable prompts.
func (a *Analyzer) SetPromptStore(store driven.PromptStore) {
	a.caller.promptStore = store
}

// Analyze retrieves the top-k items for goal and asks the LLM to extract a
// ContextAnalysis. Every failure degrades to an empty analysis plus a warning.
func (a *Analyzer) Analyze(ctx context.Context, protocolID, goal string) AnalyzeResult {
	res := AnalyzeResult{Analysis: emptyAnalysis()}

	items, err := a.query.Query(ctx, protocolID, goal, a.topK)
	if err != nil {
		logger.Warn("Context query failed, continuing without context: %v", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("context unavailable: %v", err))
		return res
	}
	if len(items) == 0 {
		logger.Debug("No context ingested for protocol %s", protocolID)
		return res
	}
	res.Items = items

	var resp analysisResponse
	err = a.caller.call(ctx, driven.PromptAnalyzeContext, a.payload(goal, items), callOptions{
		maxTokens:   1500,
		temperature: 0,
		required:    analysisKeys,
	}, &resp)
	if err != nil {
		logger.Warn("Context analysis failed, continuing with empty analysis: %v", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("context analysis failed: %v", err))
		return res
	}

	res.Analysis = domain.ContextAnalysis{
		KeyConcepts:  mergeUnique(resp.KeyConcepts),
		Rules:        mergeUnique(resp.Rules),
		ExampleSeeds: mergeUnique(resp.ExampleSeeds),
		Constraints:  mergeUnique(resp.Constraints),
		Terminology:  mergeUnique(resp.Terminology),
	}
	logger.Debug("Analysis: %d concepts, %d rules, %d constraints",
		len(res.Analysis.KeyConcepts), len(res.Analysis.Rules), len(res.Analysis.Constraints))
	return res
}

// payload builds the user message: the goal followed by numbered context
// excerpts, truncated to the character budget.
func (a *Analyzer) payload(goal string, items []domain.ScoredItem) string {
	var b strings.Builder
	b.WriteString("Goal: ")
	b.WriteString(goal)
	b.WriteString("\n\nReference material:\n")

	b.WriteString(truncateContext(items, a.budget))
	return b.String()
}

// truncateContext concatenates item text in rank order until budget runes
// are used. Headers count against the budget. The item that crosses the
// budget is cut at a rune boundary; one whose header no longer fits is dropped.
func truncateContext(items []domain.ScoredItem, budget int) string {
	var b strings.Builder
	remaining := budget
	for n, it := range items {
		header := fmt.Sprintf("\n[%d] %s\n", n+1, it.Item.Metadata.SourceName)
		framing := utf8.RuneCountInString(header) + 1
		if remaining <= framing {
			break
		}
		remaining -= framing
		text := []rune(strings.TrimSpace(it.Item.RawContent))
		if len(text) > remaining {
			text = text[:remaining]
		}
		b.WriteString(header)
		b.WriteString(string(text))
		b.WriteString("\n")
		remaining -= len(text)
	}
	return b.String()
}

func emptyAnalysis() domain.ContextAnalysis {
	return domain.ContextAnalysis{
		KeyConcepts:  []string{},
		Rules:        []string{},
		ExampleSeeds: []string{},
		Constraints:  []string{},
		Terminology:  []string{},
	}
}
