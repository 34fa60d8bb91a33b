package domain

import "time"

// Stage is a state of the generation state machine.
type Stage string

// Pipeline stages in execution order.
const (
	StageIngesting    Stage = "INGESTING"
	StageAnalyzing    Stage = "ANALYZING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageIntegrating  Stage = "INTEGRATING"
	StageExampleGen   Stage = "EXAMPLE_GEN"
	StageValidating   Stage = "VALIDATING"
	StageImproving    Stage = "IMPROVING"
	StageComplete     Stage = "COMPLETE"
	StageFailed       Stage = "FAILED"
)

// IsTerminal reports whether the stage ends a run.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageFailed
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// PipelineRun is one execution of the generation state machine.
type PipelineRun struct {
	ID             string             `json:"id"`
	ProtocolID     string             `json:"protocol_id"`
	Stage          Stage              `json:"stage"`
	IterationCount int                `json:"iteration_count"`
	LastError      string             `json:"last_error,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	History        []ValidationResult `json:"history,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Copy returns a snapshot safe to hand to callers.
func (r *PipelineRun) Copy() *PipelineRun {
	if r == nil {
		return nil
	}
	c := *r
	c.Warnings = append([]string(nil), r.Warnings...)
	c.History = append([]ValidationResult(nil), r.History...)
	return &c
}

// PipelineResult is what a finished run hands back to its caller.
type PipelineResult struct {
	Run   *PipelineRun
	Draft *ProtocolDraft
}
