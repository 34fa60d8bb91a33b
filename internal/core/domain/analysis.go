package domain

// ContextAnalysis holds structured signals extracted from a protocol's
// context. It is transient and consumed once by the integrator.
type ContextAnalysis struct {
	KeyConcepts  []string `json:"key_concepts"`
	Rules        []string `json:"rules"`
	ExampleSeeds []string `json:"example_seeds"`
	Constraints  []string `json:"constraints"`
	Terminology  []string `json:"terminology"`
}

// IsEmpty reports whether no signals were extracted.
func (a ContextAnalysis) IsEmpty() bool {
	return len(a.KeyConcepts) == 0 &&
		len(a.Rules) == 0 &&
		len(a.ExampleSeeds) == 0 &&
		len(a.Constraints) == 0 &&
		len(a.Terminology) == 0
}
