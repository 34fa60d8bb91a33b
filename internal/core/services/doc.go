// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Ingestor turns sources into embedded ContextItems. The Pipeline
// sequences the Analyzer, Synthesizer, Integrator, ExampleGenerator and
// Scorer stages and runs the bounded improve-and-rescore loop. Every model
// reply passes through a strict JSON decoder before it reaches a draft.
//
// Services are pure Go with no CGO or external dependencies.
package services
