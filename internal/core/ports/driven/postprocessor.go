package driven

import (
	"context"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// PostProcessor is one step between a normalised Document and the chunks
// that become ContextItems. The first step of a chain receives nil chunks
// and creates them; later steps annotate what they are given.
type PostProcessor interface {
	// Name is the key used in the processor chain config.
	Name() string

	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline turns a Document into embeddable chunks.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
