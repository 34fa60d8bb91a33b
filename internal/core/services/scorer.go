package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

type scoreResponse struct {
	Completeness      float64 `json:"completeness"`
	Clarity           float64 `json:"clarity"`
	Actionability     float64 `json:"actionability"`
	DomainAlignment   float64 `json:"domain_alignment"`
	HallucinationRisk float64 `json:"hallucination_risk"`
	// Overall is accepted so a reply carrying it still parses; it is
	// always recomputed.
	Overall     *float64            `json:"overall,omitempty"`
	Issues      []domain.Issue      `json:"issues"`
	Suggestions []domain.Suggestion `json:"suggestions"`
}

var scoreKeys = []string{"completeness", "clarity", "actionability", "domain_alignment", "hallucination_risk"}

// Scorer rates a draft and lists its issues.
type Scorer struct {
	caller *structuredCaller
}

// NewScorer creates a scorer.
func NewScorer(llm driven.LLMService) *Scorer {
	return &Scorer{caller: &structuredCaller{llm: llm}}
}

// SetPromptStore sets the prompt store for customisable prompts.
func (s *Scorer) SetPromptStore(store driven.PromptStore) {
	s.caller.promptStore = store
}

// Score returns the validation result for draft. The overall score is
// recomputed from the dimensions; issues and suggestions are ordered most
// severe first. Any failure wraps ErrScoringUnavailable.
func (s *Scorer) Score(ctx context.Context, draft *domain.ProtocolDraft) (domain.ValidationResult, error) {
	if draft == nil {
		return domain.ValidationResult{}, domain.ErrInvalidInput
	}

	view := viewOf(draft)
	var resp scoreResponse
	err := s.caller.call(ctx, driven.PromptScore, marshalPayload(view), callOptions{
		maxTokens:   1500,
		temperature: 0,
		required:    scoreKeys,
	}, &resp)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("%w: %w", domain.ErrScoringUnavailable, err)
	}

	score := domain.Score{
		Completeness:      resp.Completeness,
		Clarity:           resp.Clarity,
		Actionability:     resp.Actionability,
		DomainAlignment:   resp.DomainAlignment,
		HallucinationRisk: resp.HallucinationRisk,
	}.Normalise()

	result := domain.ValidationResult{
		DraftVersion: draft.Version,
		Score:        score,
		Issues:       normaliseIssues(resp.Issues),
		Suggestions:  normaliseSuggestions(resp.Suggestions),
	}
	logger.Debug("Scored draft %s v%d: overall %.2f, %d issues",
		draft.ID, draft.Version, score.Overall, len(result.Issues))
	return result, nil
}

func normaliseSeverity(s domain.Severity) domain.Severity {
	switch sev := domain.Severity(strings.ToLower(strings.TrimSpace(string(s)))); sev {
	case domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow:
		return sev
	default:
		return domain.SeverityMedium
	}
}

func normaliseIssues(in []domain.Issue) []domain.Issue {
	out := make([]domain.Issue, 0, len(in))
	for _, is := range in {
		if strings.TrimSpace(is.Message) == "" {
			continue
		}
		is.Severity = normaliseSeverity(is.Severity)
		out = append(out, is)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Severity.Rank() < out[b].Severity.Rank()
	})
	return out
}

func normaliseSuggestions(in []domain.Suggestion) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, len(in))
	for _, sg := range in {
		if strings.TrimSpace(sg.Message) == "" {
			continue
		}
		sg.Priority = normaliseSeverity(sg.Priority)
		out = append(out, sg)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Priority.Rank() < out[b].Priority.Rank()
	})
	return out
}
