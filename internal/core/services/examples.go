package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// Bounds on the number of examples requested per draft.
const (
	MinExamples = 3
	MaxExamples = 5
)

type examplesResponse struct {
	Examples []domain.Example `json:"examples"`
}

type examplesPayload struct {
	Draft    draftView `json:"draft"`
	Count    int       `json:"count"`
	Seeds    []string  `json:"seeds,omitempty"`
	Feedback []string  `json:"feedback,omitempty"`
}

// ExampleGenerator produces input/output pairs for a draft.
type ExampleGenerator struct {
	caller *structuredCaller
}

// NewExampleGenerator creates an example generator.
func NewExampleGenerator(llm driven.LLMService) *ExampleGenerator {
	return &ExampleGenerator{caller: &structuredCaller{llm: llm}}
}

// SetPromptStore sets the prompt store for customisable prompts.
func (g *ExampleGenerator) SetPromptStore(store driven.PromptStore) {
	g.caller.promptStore = store
}

// Generate asks for n examples, n clamped to [MinExamples, MaxExamples].
// Entries missing input or output are dropped and extras are cut; fewer
// than n is accepted. Failure returns no examples and a warning.
func (g *ExampleGenerator) Generate(ctx context.Context, draft *domain.ProtocolDraft, n int, seeds, feedback []string) ([]domain.Example, []string) {
	n = clampExampleCount(n)

	payload := marshalPayload(examplesPayload{
		Draft:    viewOf(draft),
		Count:    n,
		Seeds:    seeds,
		Feedback: feedback,
	})

	var resp examplesResponse
	err := g.caller.call(ctx, driven.PromptExamples, payload, callOptions{
		maxTokens:   3000,
		temperature: 0.4,
		required:    []string{"examples"},
	}, &resp)
	if err != nil {
		logger.Warn("Example generation failed: %v", err)
		return []domain.Example{}, []string{fmt.Sprintf("example generation failed: %v", err)}
	}

	out := make([]domain.Example, 0, n)
	for _, ex := range resp.Examples {
		if isBlank(ex.Input) || isBlank(ex.Output) {
			continue
		}
		out = append(out, ex)
		if len(out) == n {
			break
		}
	}
	if len(out) < n {
		logger.Debug("Example generator returned %d of %d usable examples", len(out), n)
	}
	return out, nil
}

func clampExampleCount(n int) int {
	switch {
	case n < MinExamples:
		return MinExamples
	case n > MaxExamples:
		return MaxExamples
	default:
		return n
	}
}

// isBlank reports whether an example field is absent or an empty string.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
