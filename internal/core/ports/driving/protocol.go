package driving

import (
	"context"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// ProtocolService runs the synthesis and validation pipeline.
type ProtocolService interface {
	// Generate runs the full state machine synchronously.
	// On failure the error is a *domain.PipelineError carrying the best draft.
	Generate(ctx context.Context, req domain.GenerateRequest) (*domain.PipelineResult, error)

	// Start queues a run and returns its id for polling.
	Start(ctx context.Context, req domain.GenerateRequest) (string, error)

	// Status returns a snapshot of a run.
	Status(ctx context.Context, runID string) (*domain.PipelineRun, error)

	// Wait blocks until a started run finishes and returns its outcome.
	Wait(ctx context.Context, runID string) (*domain.PipelineResult, error)

	// Cancel requests cancellation of a run between stages.
	Cancel(ctx context.Context, runID string) error

	// Revalidate scores a draft without running any other stage.
	Revalidate(ctx context.Context, draft *domain.ProtocolDraft) (domain.ValidationResult, error)

	// LatestDraft returns the most recent draft snapshot for a protocol.
	LatestDraft(ctx context.Context, protocolID string) (*domain.ProtocolDraft, error)
}
