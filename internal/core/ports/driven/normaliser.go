package driven

import (
	"context"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// Normaliser converts format-tagged source text into plain text.
// Each normaliser handles specific format tags (e.g., text/markdown).
type Normaliser interface {
	// SupportedFormats returns the format tags this normaliser handles.
	SupportedFormats() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Confidence reports how faithfully this format converts to text (0-1).
	Confidence() float64

	// Normalise transforms a source into a document.
	Normalise(ctx context.Context, src *domain.Source) (*domain.Document, error)
}
