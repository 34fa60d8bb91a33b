package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

type synthesisResponse struct {
	SystemPrompt string         `json:"system_prompt"`
	UserGuidance string         `json:"user_guidance"`
	InputSchema  map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema"`
	Constraints  []string       `json:"constraints"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata"`
}

// Synthesizer drafts a protocol from a generation request.
type Synthesizer struct {
	caller *structuredCaller
	now    func() time.Time
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(llm driven.LLMService) *Synthesizer {
	return &Synthesizer{caller: &structuredCaller{llm: llm}, now: time.Now}
}

// SetPromptStore sets the prompt store for customisable prompts.
func (s *Synthesizer) SetPromptStore(store driven.PromptStore) {
	s.caller.promptStore = store
}

// Synthesize returns a version 1 draft for req. A reply that cannot be
// parsed yields a default-filled draft and a warning; only an unreachable
// LLM fails with ErrGenerationUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, req domain.GenerateRequest) (*domain.ProtocolDraft, []string, error) {
	var warnings []string

	var resp synthesisResponse
	err := s.caller.call(ctx, driven.PromptSynthesize, marshalPayload(req), callOptions{
		maxTokens:   2048,
		temperature: 0.3,
	}, &resp)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrGenerationParse):
		logger.Warn("Synthesizer reply unusable, using defaults: %v", err)
		warnings = append(warnings, fmt.Sprintf("synthesis output malformed, defaults used: %v", err))
		resp = synthesisResponse{}
	default:
		return nil, warnings, err
	}

	draft := &domain.ProtocolDraft{
		ID:           uuid.New().String(),
		ProtocolID:   req.ProtocolID,
		Domain:       req.Domain,
		Goal:         req.Goal,
		Role:         req.Role,
		SystemPrompt: strings.TrimSpace(resp.SystemPrompt),
		UserGuidance: strings.TrimSpace(resp.UserGuidance),
		InputSchema:  orEmptyMap(resp.InputSchema),
		OutputSchema: orEmptyMap(resp.OutputSchema),
		Constraints:  mergeUnique(req.Constraints, resp.Constraints),
		Terminology:  []string{},
		Tags:         mergeUnique(resp.Tags),
		Examples:     []domain.Example{},
		Metadata:     orEmptyMap(resp.Metadata),
		Version:      1,
		Status:       domain.DraftStatusDraft,
		UpdatedAt:    s.now(),
	}
	if draft.SystemPrompt == "" {
		draft.SystemPrompt = fallbackSystemPrompt(req)
		warnings = append(warnings, "synthesizer returned no system prompt, using a generated one")
	}

	logger.Debug("Synthesized draft %s with %d constraints", draft.ID, len(draft.Constraints))
	return draft, warnings, nil
}

// fallbackSystemPrompt is a minimal instruction built from the request alone.
func fallbackSystemPrompt(req domain.GenerateRequest) string {
	var b strings.Builder
	if req.Role != "" {
		fmt.Fprintf(&b, "You are %s.", req.Role)
	} else {
		b.WriteString("You are an AI assistant.")
	}
	if req.Domain != "" {
		fmt.Fprintf(&b, " You work in the %s domain.", req.Domain)
	}
	fmt.Fprintf(&b, " Your goal: %s.", strings.TrimRight(req.Goal, "."))
	return b.String()
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
