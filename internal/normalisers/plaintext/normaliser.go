package plaintext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text and text-like formats that need no markup removal.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFormats returns the format tags this normaliser handles.
func (n *Normaliser) SupportedFormats() []string {
	return []string{
		domain.FormatPlainText,
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/x-go",
		"text/x-python",
		"text/javascript",
		"text/typescript",
		"text/x-sql",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Confidence reports how faithfully this format converts to text.
func (n *Normaliser) Confidence() float64 {
	return 1.0
}

// Normalise converts a source into a document.
// Line endings are unified and trailing whitespace trimmed; nothing else changes.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, src *domain.Source) (*domain.Document, error) {
	if src == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(src.Content, "\r\n", "\n")
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r", "\n"))

	return &domain.Document{
		ID:         uuid.New().String(),
		ProtocolID: src.ProtocolID,
		SourceType: src.Type,
		Title:      src.Name,
		Content:    content,
		Metadata: map[string]any{
			"format": src.NormalisedFormat(),
		},
		CreatedAt: time.Now(),
	}, nil
}
