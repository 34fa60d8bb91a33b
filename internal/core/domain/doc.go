// Package domain defines the core business entities for protosmith.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: A reference-material descriptor handed to the ingestor
//   - ContextItem: One embedded chunk of reference material
//   - ProtocolDraft: The structured AI-behaviour contract under construction
//   - ContextAnalysis: Signals extracted from a protocol's context
//   - ValidationResult: One scoring pass over a draft
//   - PipelineRun: One execution of the generation state machine
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
