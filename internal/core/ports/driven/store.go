package driven

import (
	"context"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// EmbeddingStore persists ContextItems and answers similarity queries
// scoped to one protocol.
type EmbeddingStore interface {
	// Add stores items. Every embedding must match Dimensions().
	Add(ctx context.Context, items []domain.ContextItem) error

	// Query returns up to k items of protocolID ranked by cosine similarity
	// to vector, ties broken by most recent CreatedAt.
	Query(ctx context.Context, protocolID string, vector []float32, k int) ([]domain.ScoredItem, error)

	// Delete removes every item owned by protocolID.
	Delete(ctx context.Context, protocolID string) error

	// DeleteItem removes one item.
	DeleteItem(ctx context.Context, protocolID, itemID string) error

	// Count returns the number of items owned by protocolID.
	Count(ctx context.Context, protocolID string) (int, error)

	// HasContentHash reports whether a source with this hash was ingested.
	HasContentHash(ctx context.Context, protocolID, hash string) (bool, error)

	// Dimensions returns the fixed vector size, or 0 if not yet fixed.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// DraftStore keeps the immutable per-stage snapshots of a draft.
type DraftStore interface {
	// SaveSnapshot records the draft as it stood after stage.
	SaveSnapshot(ctx context.Context, runID string, stage domain.Stage, draft *domain.ProtocolDraft) error

	// ListSnapshots returns snapshots for a draft in save order.
	ListSnapshots(ctx context.Context, draftID string) ([]DraftSnapshot, error)

	// Latest returns the most recent snapshot for a protocol.
	Latest(ctx context.Context, protocolID string) (*domain.ProtocolDraft, error)
}

// DraftSnapshot is one saved draft version.
type DraftSnapshot struct {
	RunID string
	Stage domain.Stage
	Draft *domain.ProtocolDraft
}
