package driving

import (
	"context"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// IngestService turns reference material into ContextItems.
type IngestService interface {
	// Ingest normalises, chunks, embeds and stores one source.
	// Failures are returned as *domain.IngestionError.
	Ingest(ctx context.Context, src domain.Source) ([]domain.ContextItem, error)

	// Remove deletes one ContextItem from a protocol.
	Remove(ctx context.Context, protocolID, itemID string) error

	// DeleteAll deletes every ContextItem owned by a protocol.
	DeleteAll(ctx context.Context, protocolID string) error

	// Count returns how many ContextItems a protocol owns.
	Count(ctx context.Context, protocolID string) (int, error)
}
