package domain

import "strings"

// SourceType identifies how reference material was supplied.
type SourceType string

// Supported source types.
const (
	SourceTypeFile SourceType = "file"
	SourceTypeURL  SourceType = "url"
	SourceTypeText SourceType = "text"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeFile, SourceTypeURL, SourceTypeText:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// Well-known format tags produced by the external extraction collaborator.
const (
	FormatPlainText = "text/plain"
	FormatMarkdown  = "text/markdown"
	FormatHTML      = "text/html"
)

// Source describes one piece of reference material to ingest.
// Extraction from binary formats happens before this point; Content is
// already text and Format tags how that text is marked up.
type Source struct {
	// ProtocolID owns every ContextItem produced from this source.
	ProtocolID string

	// Type is file, url or text.
	Type SourceType

	// Name is a display name (file name, URL, or a label for pasted text).
	Name string

	// Format is the MIME-like format tag. Empty means text/plain.
	Format string

	// Content is the extracted text.
	Content string
}

// NormalisedFormat returns the lower-cased format tag without parameters,
// defaulting to text/plain.
func (s Source) NormalisedFormat() string {
	f := strings.ToLower(strings.TrimSpace(s.Format))
	if i := strings.Index(f, ";"); i >= 0 {
		f = strings.TrimSpace(f[:i])
	}
	if f == "" {
		return FormatPlainText
	}
	return f
}

// Validate checks that the descriptor is usable.
func (s Source) Validate() error {
	if strings.TrimSpace(s.ProtocolID) == "" {
		return ErrInvalidInput
	}
	if !s.Type.IsValid() {
		return ErrInvalidInput
	}
	return nil
}
