package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

type integrationResponse struct {
	SystemPrompt string   `json:"system_prompt"`
	UserGuidance string   `json:"user_guidance"`
	Constraints  []string `json:"constraints"`
	Terminology  []string `json:"terminology"`
}

type integrationPayload struct {
	Draft    draftView              `json:"draft"`
	Context  domain.ContextAnalysis `json:"context"`
	Feedback []string               `json:"feedback,omitempty"`
}

// draftView is the part of a draft shown to the model.
type draftView struct {
	Domain       string           `json:"domain,omitempty"`
	Goal         string           `json:"goal"`
	Role         string           `json:"role,omitempty"`
	SystemPrompt string           `json:"system_prompt"`
	UserGuidance string           `json:"user_guidance"`
	InputSchema  map[string]any   `json:"input_schema"`
	OutputSchema map[string]any   `json:"output_schema"`
	Constraints  []string         `json:"constraints"`
	Terminology  []string         `json:"terminology,omitempty"`
	Examples     []domain.Example `json:"examples,omitempty"`
}

func viewOf(d *domain.ProtocolDraft) draftView {
	return draftView{
		Domain:       d.Domain,
		Goal:         d.Goal,
		Role:         d.Role,
		SystemPrompt: d.SystemPrompt,
		UserGuidance: d.UserGuidance,
		InputSchema:  d.InputSchema,
		OutputSchema: d.OutputSchema,
		Constraints:  d.Constraints,
		Terminology:  d.Terminology,
		Examples:     d.Examples,
	}
}

// Integrator folds context analysis and reviewer feedback into a draft.
type Integrator struct {
	caller *structuredCaller
	now    func() time.Time
}

// NewIntegrator creates an integrator.
func NewIntegrator(llm driven.LLMService) *Integrator {
	return &Integrator{caller: &structuredCaller{llm: llm}, now: time.Now}
}

// SetPromptStore sets the prompt store for customisable prompts.
func (i *Integrator) SetPromptStore(store driven.PromptStore) {
	i.caller.promptStore = store
}

// Integrate returns a new draft version with rewritten prose and merged
// constraint and terminology lists. Schemas are never touched. With nothing
// to integrate, or when the LLM fails, the base draft is returned as is.
func (i *Integrator) Integrate(ctx context.Context, draft *domain.ProtocolDraft, analysis domain.ContextAnalysis, feedback []string) (*domain.ProtocolDraft, []string) {
	if analysis.IsEmpty() && len(feedback) == 0 {
		logger.Debug("Nothing to integrate into draft %s", draft.ID)
		return draft, nil
	}

	payload := marshalPayload(integrationPayload{
		Draft:    viewOf(draft),
		Context:  analysis,
		Feedback: feedback,
	})

	var resp integrationResponse
	err := i.caller.call(ctx, driven.PromptIntegrate, payload, callOptions{
		maxTokens:   2048,
		temperature: 0.2,
		required:    []string{"system_prompt", "constraints"},
	}, &resp)
	if err != nil {
		logger.Warn("Context integration failed, keeping draft v%d: %v", draft.Version, err)
		return draft, []string{fmt.Sprintf("context integration failed: %v", err)}
	}

	out := draft.Clone()
	if p := strings.TrimSpace(resp.SystemPrompt); p != "" {
		out.SystemPrompt = p
	}
	if g := strings.TrimSpace(resp.UserGuidance); g != "" {
		out.UserGuidance = g
	}
	out.Constraints = mergeConstraints(draft.Constraints, resp.Constraints, analysis)
	out.Terminology = mergeUnique(draft.Terminology, resp.Terminology, analysis.Terminology)
	out.Version++
	out.UpdatedAt = i.now()

	logger.Debug("Integrated draft %s v%d: %d constraints", out.ID, out.Version, len(out.Constraints))
	return out, nil
}

// mergeConstraints keeps the draft's constraints first, then the model's
// rewrites, then constraints and rules from the analysis, deduplicated by
// normalised text.
func mergeConstraints(base, rewritten []string, analysis domain.ContextAnalysis) []string {
	return mergeUnique(base, rewritten, analysis.Constraints, analysis.Rules)
}
