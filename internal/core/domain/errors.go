package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Ingestion Errors.

	// ErrUnsupportedFormat indicates no normaliser handles the source format.
	// Fatal to that source only.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmbeddingService indicates embedding calls failed after retries.
	// The ingestion may be retried.
	ErrEmbeddingService = errors.New("embedding service error")

	// Store and Context Errors.

	// ErrStoreUnavailable indicates the embedding store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrContextQuery indicates context retrieval failed; callers degrade
	// to an empty context.
	ErrContextQuery = errors.New("context query failed")

	// Generation Errors.

	// ErrGenerationParse indicates structured model output failed validation.
	ErrGenerationParse = errors.New("generation output malformed")

	// ErrGenerationUnavailable indicates the LLM exhausted its retries.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrScoringUnavailable indicates no score could be produced.
	ErrScoringUnavailable = errors.New("scoring unavailable")

	// Pipeline Errors.

	// ErrPipelineBusy indicates another generation holds the protocol lock.
	ErrPipelineBusy = errors.New("pipeline busy")

	// ErrCancelled indicates the caller cancelled the run.
	ErrCancelled = errors.New("cancelled")

	// ErrBelowHardFloor indicates the best score never reached the hard floor.
	ErrBelowHardFloor = errors.New("score below hard floor")
)

// IngestionError reports why one source could not be ingested.
type IngestionError struct {
	// SourceName identifies the failing source.
	SourceName string

	// Retryable is true when ingesting the same source again may succeed.
	Retryable bool

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %q: %v", e.SourceName, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IngestionError) Unwrap() error {
	return e.Err
}

// PipelineError ends a run that could not reach COMPLETE.
// BestDraft is the highest-scoring draft produced, or the latest partial
// draft when nothing was scored.
type PipelineError struct {
	RunID     string
	Stage     Stage
	Err       error
	BestDraft *ProtocolDraft
}

// Error implements error.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline run %s failed at %s: %v", e.RunID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}
