package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

var refundRequest = domain.GenerateRequest{
	ProtocolID:  "p1",
	Domain:      "retail support",
	Goal:        "build a refund-policy assistant",
	Role:        "a customer support agent",
	Constraints: []string{"Never share card numbers", "Be polite"},
}

func TestSynthesizer_Synthesize(t *testing.T) {
	llm := newScriptedLLM().onJSON(driven.PromptSynthesize, synthesisReply())
	s := NewSynthesizer(llm)

	draft, warnings, err := s.Synthesize(context.Background(), refundRequest)

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, "p1", draft.ProtocolID)
	assert.Equal(t, refundRequest.Goal, draft.Goal)
	assert.Equal(t, "You are a refund-policy assistant.", draft.SystemPrompt)
	assert.Equal(t, map[string]any{"type": "object"}, draft.InputSchema)
	assert.Equal(t, []string{"Never share card numbers", "Be polite"}, draft.Constraints,
		"user constraints first, model duplicate dropped")
	assert.Equal(t, 1, draft.Version)
	assert.Equal(t, domain.DraftStatusDraft, draft.Status)
}

func TestSynthesizer_MissingKeysDefaultFilled(t *testing.T) {
	llm := newScriptedLLM().on(driven.PromptSynthesize, `{"user_guidance":"Ask away."}`)
	s := NewSynthesizer(llm)

	draft, warnings, err := s.Synthesize(context.Background(), refundRequest)

	require.NoError(t, err)
	assert.Equal(t, "Ask away.", draft.UserGuidance)
	assert.NotNil(t, draft.InputSchema)
	assert.NotNil(t, draft.OutputSchema)
	assert.NotNil(t, draft.Examples)
	assert.Contains(t, draft.SystemPrompt, "a customer support agent")
	assert.Contains(t, draft.SystemPrompt, refundRequest.Goal)
	require.Len(t, warnings, 1)
}

func TestSynthesizer_MalformedTwiceStillDrafts(t *testing.T) {
	llm := newScriptedLLM().on(driven.PromptSynthesize, "Here is your protocol: be nice.")
	s := NewSynthesizer(llm)

	draft, warnings, err := s.Synthesize(context.Background(), refundRequest)

	require.NoError(t, err)
	assert.Equal(t, refundRequest.Constraints, draft.Constraints)
	assert.Len(t, warnings, 2)
	assert.Equal(t, 2, llm.callCount(driven.PromptSynthesize))
}

func TestSynthesizer_Unavailable(t *testing.T) {
	llm := newScriptedLLM().onFunc(driven.PromptSynthesize, func(driven.CompletionRequest) (string, error) {
		return "", domain.ErrRateLimited
	})
	s := NewSynthesizer(llm)

	draft, _, err := s.Synthesize(context.Background(), refundRequest)

	assert.Nil(t, draft)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestFallbackSystemPrompt(t *testing.T) {
	got := fallbackSystemPrompt(domain.GenerateRequest{Goal: "answer billing questions."})
	assert.Equal(t, "You are an AI assistant. Your goal: answer billing questions.", got)
}
