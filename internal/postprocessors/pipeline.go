// Package postprocessors turns normalised documents into the chunks the
// ingestor embeds.
package postprocessors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// Pipeline runs processors in order. The first one creates chunks, the rest
// annotate or reshape them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline that runs processors in the given order.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process chunks doc. Whitespace-only chunks are dropped, the survivors are
// renumbered from zero and every chunk is stamped with the document and
// protocol it came from.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if len(p.processors) == 0 {
		return nil, fmt.Errorf("%w: no processors configured", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, proc := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		chunks, err = proc.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", proc.Name(), err)
		}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		c.Position = len(out)
		c.DocumentID = doc.ID
		if c.Metadata == nil {
			c.Metadata = make(map[string]any, 1)
		}
		c.Metadata["protocol_id"] = doc.ProtocolID
		out = append(out, c)
	}
	return out, nil
}

// Add appends a processor to the end of the chain.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Names lists the processors in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}
