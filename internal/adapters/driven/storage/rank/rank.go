// Package rank scores stored context items against a query vector. It is
// shared by the in-memory and SQLite embedding stores so both order
// results identically.
package rank

import (
	"math"
	"sort"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK scores items against query and returns the best k: highest
// similarity first, ties broken by most recent CreatedAt, then by lower
// ChunkIndex, then by ID.
func TopK(items []domain.ContextItem, query []float32, k int) []domain.ScoredItem {
	if k <= 0 || len(items) == 0 {
		return []domain.ScoredItem{}
	}

	scored := make([]domain.ScoredItem, len(items))
	for i, item := range items {
		scored[i] = domain.ScoredItem{Item: item, Similarity: Cosine(query, item.Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		if a.Item.ChunkIndex != b.Item.ChunkIndex {
			return a.Item.ChunkIndex < b.Item.ChunkIndex
		}
		return a.Item.ID < b.Item.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
