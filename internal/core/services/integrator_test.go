package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

func baseDraft() *domain.ProtocolDraft {
	return &domain.ProtocolDraft{
		ID:           "d1",
		ProtocolID:   "p1",
		Goal:         refundRequest.Goal,
		SystemPrompt: "You help with refunds.",
		InputSchema:  map[string]any{"type": "object", "required": []any{"order_id"}},
		OutputSchema: map[string]any{"type": "string"},
		Constraints:  []string{"Be polite."},
		Terminology:  []string{},
		Examples:     []domain.Example{},
		Version:      1,
		Status:       domain.DraftStatusDraft,
	}
}

func TestIntegrator_NothingToIntegrate(t *testing.T) {
	llm := newScriptedLLM()
	in := baseDraft()

	out, warnings := NewIntegrator(llm).Integrate(context.Background(), in, emptyAnalysis(), nil)

	assert.Same(t, in, out)
	assert.Empty(t, warnings)
	assert.Zero(t, llm.callCount(driven.PromptIntegrate))
}

func TestIntegrator_MergesContext(t *testing.T) {
	var sent integrationPayload
	llm := newScriptedLLM().onFunc(driven.PromptIntegrate, func(req driven.CompletionRequest) (string, error) {
		if err := json.Unmarshal([]byte(req.User), &sent); err != nil {
			return "", err
		}
		return `{"system_prompt":"You help with refunds within 14 days.","user_guidance":"Give your order id.",` +
			`"constraints":["be polite","Quote the refund window"],"terminology":["RMA"]}`, nil
	})
	in := baseDraft()
	analysis := domain.ContextAnalysis{
		Rules:       []string{refundRule},
		Constraints: []string{"Quote the refund window."},
		Terminology: []string{"rma", "SKU"},
	}

	out, warnings := NewIntegrator(llm).Integrate(context.Background(), in, analysis, []string{"issue [high]: vague"})

	assert.Empty(t, warnings)
	assert.NotSame(t, in, out)
	assert.Equal(t, 2, out.Version)
	assert.Equal(t, "You help with refunds within 14 days.", out.SystemPrompt)
	assert.Equal(t, []string{"Be polite.", "Quote the refund window", refundRule}, out.Constraints)
	assert.Equal(t, []string{"RMA", "SKU"}, out.Terminology)
	assert.Equal(t, in.InputSchema, out.InputSchema, "schemas untouched")
	assert.Equal(t, in.OutputSchema, out.OutputSchema)

	assert.Equal(t, []string{"issue [high]: vague"}, sent.Feedback)
	assert.Equal(t, analysis.Rules, sent.Context.Rules)

	// base draft is not mutated
	assert.Equal(t, 1, in.Version)
	assert.Equal(t, []string{"Be polite."}, in.Constraints)
}

func TestIntegrator_FailureKeepsBaseDraft(t *testing.T) {
	llm := newScriptedLLM().on(driven.PromptIntegrate, `{"system_prompt": 42}`)
	in := baseDraft()

	out, warnings := NewIntegrator(llm).Integrate(context.Background(), in,
		domain.ContextAnalysis{Rules: []string{refundRule}}, nil)

	assert.Same(t, in, out)
	assert.Equal(t, 1, out.Version)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "context integration failed")
}

func TestMergeConstraints_AnalysisAfterDraft(t *testing.T) {
	got := mergeConstraints(
		[]string{"A rule"},
		nil,
		domain.ContextAnalysis{Constraints: []string{"b rule"}, Rules: []string{"a RULE.", "c rule"}},
	)
	assert.Equal(t, []string{"A rule", "b rule", "c rule"}, got)
}
