package domain

import "time"

// ContextItem is one embedded chunk of user-supplied reference material.
// It is immutable once embedded and owned exclusively by one protocol.
type ContextItem struct {
	// ID is the unique identifier for the item.
	ID string

	// ProtocolID is the owning protocol.
	ProtocolID string

	// SourceType records how the material was supplied.
	SourceType SourceType

	// RawContent is the chunk text.
	RawContent string

	// ChunkIndex is the ordinal position of the chunk within its source.
	ChunkIndex int

	// Embedding is the vector representation; its length equals the
	// store's dimensionality.
	Embedding []float32

	// Metadata describes the originating source.
	Metadata ContextMetadata

	// CreatedAt is when the item was embedded.
	CreatedAt time.Time
}

// ContextMetadata carries per-item source information.
type ContextMetadata struct {
	// SourceName is the display name of the originating source.
	SourceName string `json:"source_name"`

	// Size is the chunk length in bytes.
	Size int `json:"size"`

	// Confidence reflects how cleanly the source format converts to text.
	Confidence float64 `json:"confidence"`

	// Keywords are the most frequent significant terms in the chunk.
	Keywords []string `json:"keywords,omitempty"`

	// ContentHash is the hex sha256 of the whole normalised source.
	ContentHash string `json:"content_hash,omitempty"`
}

// ScoredItem pairs a ContextItem with its similarity to a query.
type ScoredItem struct {
	Item       ContextItem
	Similarity float64
}
