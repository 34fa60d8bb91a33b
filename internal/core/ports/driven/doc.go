// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - LLMService: Completion requests with JSON-shaped output
//   - EmbeddingService: Text to fixed-dimension vectors
//   - EmbeddingStore: ContextItem persistence and similarity queries
//   - NormaliserRegistry: Format-tagged text to plain text
//   - PostProcessorPipeline: Document to overlapping chunks
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - DraftStore: Per-stage draft snapshots. Without it, snapshots are not kept.
//   - PromptStore: User-editable prompt templates. Without it, embedded defaults apply.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
