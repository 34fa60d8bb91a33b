package domain

import "time"

// Document is the normalised plain-text form of a Source.
// It is the input to the chunking pipeline.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// ProtocolID is the protocol whose context this document belongs to.
	ProtocolID string

	// SourceType records how the material reached the ingestor.
	SourceType SourceType

	// Title is the human-readable source name.
	Title string

	// Content is the full text content after normalisation.
	// This is the complete document text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was normalised.
	CreatedAt time.Time
}

// Chunk represents one overlapping window of a Document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for similarity search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}
