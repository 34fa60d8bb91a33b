package domain

import "math"

// Score holds the per-dimension quality scores of a draft, each in [0,100].
type Score struct {
	Overall           float64 `json:"overall" yaml:"overall"`
	Completeness      float64 `json:"completeness" yaml:"completeness"`
	Clarity           float64 `json:"clarity" yaml:"clarity"`
	Actionability     float64 `json:"actionability" yaml:"actionability"`
	DomainAlignment   float64 `json:"domain_alignment" yaml:"domain_alignment"`
	HallucinationRisk float64 `json:"hallucination_risk" yaml:"hallucination_risk"`
}

// Normalise clamps every dimension to [0,100] and recomputes Overall.
// Any Overall supplied by a model is discarded.
func (s Score) Normalise() Score {
	s.Completeness = ClampScore(s.Completeness)
	s.Clarity = ClampScore(s.Clarity)
	s.Actionability = ClampScore(s.Actionability)
	s.DomainAlignment = ClampScore(s.DomainAlignment)
	s.HallucinationRisk = ClampScore(s.HallucinationRisk)
	s.Overall = ComputeOverall(s)
	return s
}

// ComputeOverall is the equal-weight mean of completeness, clarity,
// actionability, domain alignment and inverted hallucination risk,
// rounded to two decimals.
func ComputeOverall(s Score) float64 {
	sum := ClampScore(s.Completeness) +
		ClampScore(s.Clarity) +
		ClampScore(s.Actionability) +
		ClampScore(s.DomainAlignment) +
		(100 - ClampScore(s.HallucinationRisk))
	return math.Round(sum/5*100) / 100
}

// ClampScore bounds v to [0,100]. NaN maps to 0.
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Severity ranks validation issues.
type Severity string

// Issue severities, most severe first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns a sort key where lower is more severe.
// Unknown severities sort with medium.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityLow:
		return 3
	default:
		return 2
	}
}

// Issue is a problem the scorer found in a draft.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Field    string   `json:"field,omitempty" yaml:"field,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

// Suggestion is an improvement the scorer proposes.
// Priority uses the same scale as Severity.
type Suggestion struct {
	Priority Severity `json:"priority" yaml:"priority"`
	Field    string   `json:"field,omitempty" yaml:"field,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

// ValidationResult is the outcome of one scoring pass.
type ValidationResult struct {
	DraftVersion int          `json:"draft_version" yaml:"draft_version"`
	Score        Score        `json:"score" yaml:"score"`
	Issues       []Issue      `json:"issues" yaml:"issues"`
	Suggestions  []Suggestion `json:"suggestions" yaml:"suggestions"`
}

// Feedback flattens issues and suggestions into prompt-ready lines.
func (r ValidationResult) Feedback() []string {
	out := make([]string, 0, len(r.Issues)+len(r.Suggestions))
	for _, is := range r.Issues {
		out = append(out, feedbackLine("issue", string(is.Severity), is.Field, is.Message))
	}
	for _, sg := range r.Suggestions {
		out = append(out, feedbackLine("suggestion", string(sg.Priority), sg.Field, sg.Message))
	}
	return out
}

func feedbackLine(kind, level, field, msg string) string {
	line := kind + " [" + level + "]"
	if field != "" {
		line += " " + field
	}
	return line + ": " + msg
}
