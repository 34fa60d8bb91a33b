package mcp

import (
	"time"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// ExampleView is one input/output pair.
type ExampleView struct {
	Input  any `json:"input"`
	Output any `json:"output"`
}

// ReferenceView points at the context item that grounded a draft.
type ReferenceView struct {
	ContextItemID string  `json:"context_item_id"`
	SourceName    string  `json:"source_name,omitempty"`
	Similarity    float64 `json:"similarity"`
}

// DraftView is the wire form of a protocol draft.
type DraftView struct {
	ID           string          `json:"id,omitempty"`
	ProtocolID   string          `json:"protocol_id,omitempty"`
	Domain       string          `json:"domain,omitempty"`
	Goal         string          `json:"goal,omitempty"`
	Role         string          `json:"role,omitempty"`
	SystemPrompt string          `json:"system_prompt" jsonschema:"the system prompt the protocol installs"`
	UserGuidance string          `json:"user_guidance,omitempty"`
	InputSchema  map[string]any  `json:"input_schema,omitempty"`
	OutputSchema map[string]any  `json:"output_schema,omitempty"`
	Constraints  []string        `json:"constraints,omitempty"`
	Terminology  []string        `json:"terminology,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Examples     []ExampleView   `json:"examples,omitempty"`
	References   []ReferenceView `json:"references,omitempty"`
	Version      int             `json:"version,omitempty"`
	Status       string          `json:"status,omitempty"`
	Score        *ScoreView      `json:"score,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
}

// ScoreView holds per-dimension scores in [0,100].
type ScoreView struct {
	Overall           float64 `json:"overall"`
	Completeness      float64 `json:"completeness"`
	Clarity           float64 `json:"clarity"`
	Actionability     float64 `json:"actionability"`
	DomainAlignment   float64 `json:"domain_alignment"`
	HallucinationRisk float64 `json:"hallucination_risk"`
}

// IssueView is a problem found by the scorer.
type IssueView struct {
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// SuggestionView is an improvement proposed by the scorer.
type SuggestionView struct {
	Priority string `json:"priority"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// ValidationView is one scoring pass.
type ValidationView struct {
	DraftVersion int              `json:"draft_version"`
	Score        ScoreView        `json:"score"`
	Issues       []IssueView      `json:"issues"`
	Suggestions  []SuggestionView `json:"suggestions"`
}

// RunView is a pipeline run snapshot.
type RunView struct {
	RunID          string           `json:"run_id"`
	ProtocolID     string           `json:"protocol_id"`
	Stage          string           `json:"stage"`
	IterationCount int              `json:"iteration_count"`
	LastError      string           `json:"last_error,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	History        []ValidationView `json:"history,omitempty"`
	StartedAt      string           `json:"started_at"`
	UpdatedAt      string           `json:"updated_at"`
}

func draftView(d *domain.ProtocolDraft) *DraftView {
	if d == nil {
		return nil
	}
	v := &DraftView{
		ID:           d.ID,
		ProtocolID:   d.ProtocolID,
		Domain:       d.Domain,
		Goal:         d.Goal,
		Role:         d.Role,
		SystemPrompt: d.SystemPrompt,
		UserGuidance: d.UserGuidance,
		InputSchema:  d.InputSchema,
		OutputSchema: d.OutputSchema,
		Constraints:  d.Constraints,
		Terminology:  d.Terminology,
		Tags:         d.Tags,
		Version:      d.Version,
		Status:       string(d.Status),
		UpdatedAt:    formatTime(d.UpdatedAt),
	}
	for _, ex := range d.Examples {
		v.Examples = append(v.Examples, ExampleView(ex))
	}
	for _, ref := range d.References {
		v.References = append(v.References, ReferenceView(ref))
	}
	if d.Score != nil {
		s := scoreView(*d.Score)
		v.Score = &s
	}
	return v
}

// toDomain converts a caller-supplied draft. A missing version is read
// as the first one.
func (v *DraftView) toDomain() *domain.ProtocolDraft {
	d := &domain.ProtocolDraft{
		ID:           v.ID,
		ProtocolID:   v.ProtocolID,
		Domain:       v.Domain,
		Goal:         v.Goal,
		Role:         v.Role,
		SystemPrompt: v.SystemPrompt,
		UserGuidance: v.UserGuidance,
		InputSchema:  v.InputSchema,
		OutputSchema: v.OutputSchema,
		Constraints:  v.Constraints,
		Terminology:  v.Terminology,
		Tags:         v.Tags,
		Version:      max(v.Version, 1),
		Status:       domain.DraftStatus(v.Status),
	}
	for _, ex := range v.Examples {
		d.Examples = append(d.Examples, domain.Example(ex))
	}
	for _, ref := range v.References {
		d.References = append(d.References, domain.Reference(ref))
	}
	if d.Status == "" {
		d.Status = domain.DraftStatusDraft
	}
	return d
}

func scoreView(s domain.Score) ScoreView {
	return ScoreView(s)
}

func validationView(r domain.ValidationResult) ValidationView {
	v := ValidationView{
		DraftVersion: r.DraftVersion,
		Score:        scoreView(r.Score),
		Issues:       make([]IssueView, 0, len(r.Issues)),
		Suggestions:  make([]SuggestionView, 0, len(r.Suggestions)),
	}
	for _, is := range r.Issues {
		v.Issues = append(v.Issues, IssueView{Severity: string(is.Severity), Field: is.Field, Message: is.Message})
	}
	for _, sg := range r.Suggestions {
		v.Suggestions = append(v.Suggestions, SuggestionView{Priority: string(sg.Priority), Field: sg.Field, Message: sg.Message})
	}
	return v
}

func runView(r *domain.PipelineRun) RunView {
	v := RunView{
		RunID:          r.ID,
		ProtocolID:     r.ProtocolID,
		Stage:          string(r.Stage),
		IterationCount: r.IterationCount,
		LastError:      r.LastError,
		Warnings:       r.Warnings,
		StartedAt:      formatTime(r.StartedAt),
		UpdatedAt:      formatTime(r.UpdatedAt),
	}
	for _, h := range r.History {
		v.History = append(v.History, validationView(h))
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
