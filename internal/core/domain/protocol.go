package domain

import (
	"strings"
	"time"
)

// DraftStatus is the lifecycle status of a ProtocolDraft.
type DraftStatus string

// Draft statuses.
const (
	DraftStatusDraft                DraftStatus = "draft"
	DraftStatusComplete             DraftStatus = "complete"
	DraftStatusCompleteWithWarnings DraftStatus = "complete_with_warnings"
	DraftStatusFailed               DraftStatus = "failed"
)

// Example is one input/output pair demonstrating the protocol.
type Example struct {
	Input  any `json:"input" yaml:"input"`
	Output any `json:"output" yaml:"output"`
}

// Reference points at a ContextItem that grounded the draft.
type Reference struct {
	ContextItemID string  `json:"context_item_id" yaml:"context_item_id"`
	SourceName    string  `json:"source_name" yaml:"source_name"`
	Similarity    float64 `json:"similarity" yaml:"similarity"`
}

// ProtocolDraft is the structured AI-behaviour specification under
// construction. Pipeline stages mutate it in place; Clone takes the
// snapshot recorded after each stage.
type ProtocolDraft struct {
	ID           string         `json:"id" yaml:"id"`
	ProtocolID   string         `json:"protocol_id" yaml:"protocol_id"`
	Domain       string         `json:"domain" yaml:"domain"`
	Goal         string         `json:"goal" yaml:"goal"`
	Role         string         `json:"role" yaml:"role"`
	SystemPrompt string         `json:"system_prompt" yaml:"system_prompt"`
	UserGuidance string         `json:"user_guidance" yaml:"user_guidance"`
	InputSchema  map[string]any `json:"input_schema" yaml:"input_schema"`
	OutputSchema map[string]any `json:"output_schema" yaml:"output_schema"`
	Constraints  []string       `json:"constraints" yaml:"constraints"`
	Terminology  []string       `json:"terminology,omitempty" yaml:"terminology,omitempty"`
	Tags         []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Examples     []Example      `json:"examples" yaml:"examples"`
	References   []Reference    `json:"references,omitempty" yaml:"references,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Version      int            `json:"version" yaml:"version"`
	Status       DraftStatus    `json:"status" yaml:"status"`
	Score        *Score         `json:"score,omitempty" yaml:"score,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the draft.
func (d *ProtocolDraft) Clone() *ProtocolDraft {
	if d == nil {
		return nil
	}
	c := *d
	c.InputSchema = cloneMap(d.InputSchema)
	c.OutputSchema = cloneMap(d.OutputSchema)
	c.Metadata = cloneMap(d.Metadata)
	c.Constraints = cloneStrings(d.Constraints)
	c.Terminology = cloneStrings(d.Terminology)
	c.Tags = cloneStrings(d.Tags)
	if d.Examples != nil {
		c.Examples = make([]Example, len(d.Examples))
		for i, ex := range d.Examples {
			c.Examples[i] = Example{Input: cloneValue(ex.Input), Output: cloneValue(ex.Output)}
		}
	}
	if d.References != nil {
		c.References = append([]Reference(nil), d.References...)
	}
	if d.Score != nil {
		s := *d.Score
		c.Score = &s
	}
	return &c
}

// GenerateRequest is the user's description of the desired protocol.
type GenerateRequest struct {
	ProtocolID  string   `json:"protocol_id" yaml:"protocol_id"`
	Domain      string   `json:"domain" yaml:"domain"`
	Goal        string   `json:"goal" yaml:"goal"`
	Role        string   `json:"role" yaml:"role"`
	Constraints []string `json:"constraints" yaml:"constraints"`
}

// Validate checks the required fields.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.ProtocolID) == "" || strings.TrimSpace(r.Goal) == "" {
		return ErrInvalidInput
	}
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}
