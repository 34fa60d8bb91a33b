package normalisers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/normalisers/html"
	"github.com/custodia-labs/protosmith/internal/normalisers/markdown"
	"github.com/custodia-labs/protosmith/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches sources to the highest-priority normaliser that
// supports their format tag.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates a registry holding the given normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	r := &Registry{}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Defaults returns a registry with the built-in plaintext, markdown and
// html normalisers.
func Defaults() *Registry {
	return NewRegistry(plaintext.New(), markdown.New(), html.New())
}

// Register adds a normaliser. Normalisers are kept sorted by priority,
// highest first; equal priorities keep registration order.
func (r *Registry) Register(n driven.Normaliser) {
	if n == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise transforms a source using the best matching normaliser and
// returns the document with that normaliser's confidence.
func (r *Registry) Normalise(ctx context.Context, src *domain.Source) (*domain.Document, float64, error) {
	if src == nil {
		return nil, 0, domain.ErrInvalidInput
	}

	format := src.NormalisedFormat()
	n := r.find(format)
	if n == nil {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}

	doc, err := n.Normalise(ctx, src)
	if err != nil {
		return nil, 0, err
	}
	return doc, n.Confidence(), nil
}

// SupportedFormats returns all format tags that can be normalised, sorted.
func (r *Registry) SupportedFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var formats []string
	for _, n := range r.normalisers {
		for _, f := range n.SupportedFormats() {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			formats = append(formats, f)
		}
	}
	sort.Strings(formats)
	return formats
}

func (r *Registry) find(format string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.normalisers {
		for _, f := range n.SupportedFormats() {
			if f == format {
				return n
			}
		}
	}
	return nil
}
