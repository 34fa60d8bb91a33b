package driven

import (
	"context"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a source.
// It dispatches on the source's format tag, highest priority first.
type NormaliserRegistry interface {
	// Normalise transforms a source using the best matching normaliser.
	// Returns domain.ErrUnsupportedFormat if no normaliser handles the format.
	Normalise(ctx context.Context, src *domain.Source) (*domain.Document, float64, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedFormats returns all format tags that can be normalised.
	SupportedFormats() []string
}
