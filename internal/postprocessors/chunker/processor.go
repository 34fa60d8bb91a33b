// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters (15%).
const DefaultChunkOverlap = 150

// boundarySlack is how far back from a window end the chunker looks for
// whitespace to break on, as a fraction of chunk size.
const boundarySlack = 10

// Processor splits document content into overlapping fixed-size chunks.
// Sizes are counted in runes so multi-byte text is never split mid-character.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Every chunk after the first starts with the last overlap characters of
// its predecessor, and the final chunk always ends at the end of the text.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	runes := []rune(doc.Content)
	total := len(runes)
	if total == 0 {
		// Empty content produces no chunks
		return nil, nil
	}

	step := p.chunkSize - p.overlap
	chunks := make([]domain.Chunk, 0, total/step+1)

	for start := 0; start < total; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end >= total {
			end = total
		} else {
			end = p.breakPoint(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    string(runes[start:end]),
			Position:   len(chunks),
			Metadata: map[string]any{
				"start": start,
				"end":   end,
			},
		})

		if end == total {
			break
		}
		next := end - p.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// breakPoint moves end back to just after the nearest whitespace, as long
// as that keeps the chunk longer than the overlap plus the slack window.
func (p *Processor) breakPoint(runes []rune, start, end int) int {
	limit := end - p.chunkSize/boundarySlack
	if floor := start + p.overlap + 1; limit < floor {
		limit = floor
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
