// Package keywords tags chunks with their most frequent significant terms.
package keywords

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// MetadataKey is the chunk metadata key the keywords are stored under.
const MetadataKey = "keywords"

// DefaultMaxKeywords is the default number of keywords per chunk.
const DefaultMaxKeywords = 5

// minTermLength excludes short tokens such as "to" and "of".
const minTermLength = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "his": {}, "how": {}, "its": {}, "may": {},
	"who": {}, "did": {}, "yes": {}, "this": {}, "that": {}, "with": {}, "have": {},
	"from": {}, "they": {}, "will": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "been": {},
	"were": {}, "into": {}, "than": {}, "then": {}, "them": {}, "these": {},
	"those": {}, "such": {}, "only": {}, "also": {}, "must": {}, "should": {},
	"within": {}, "about": {}, "after": {}, "before": {}, "each": {}, "other": {},
	"some": {}, "more": {}, "most": {}, "your": {}, "does": {}, "being": {},
}

// Processor tags each chunk with its top terms.
// It implements the PostProcessor interface.
type Processor struct {
	max int
}

// Option configures the keywords processor.
type Option func(*Processor)

// WithMax sets how many keywords each chunk keeps.
func WithMax(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.max = n
		}
	}
}

// New creates a new keywords processor.
func New(opts ...Option) *Processor {
	p := &Processor{max: DefaultMaxKeywords}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "keywords"
}

// Process annotates the incoming chunks in place and returns them.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		chunks[i].Metadata[MetadataKey] = Extract(chunks[i].Content, p.max)
	}
	return chunks, nil
}

// Extract returns up to n lower-cased terms of text ordered by frequency,
// ties broken alphabetically. Stopwords, numbers and terms shorter than
// three characters are skipped.
func Extract(text string, n int) []string {
	counts := make(map[string]int)
	for _, term := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		if len([]rune(term)) < minTermLength || isNumber(term) {
			continue
		}
		if _, stop := stopwords[term]; stop {
			continue
		}
		counts[term]++
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
}

func isNumber(term string) bool {
	for _, r := range term {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
