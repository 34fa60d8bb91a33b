package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/protosmith/internal/adapters/driven/storage/rank"
	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// Ensure EmbeddingStore implements the interface.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore is an in-memory implementation of driven.EmbeddingStore.
// Items are partitioned by protocol so a query only ever scans its own
// protocol's items.
type EmbeddingStore struct {
	mu         sync.RWMutex
	dimensions int
	items      map[string][]domain.ContextItem
}

// NewEmbeddingStore creates a store with a fixed dimensionality.
// A dimensions of 0 fixes it on the first Add.
func NewEmbeddingStore(dimensions int) *EmbeddingStore {
	return &EmbeddingStore{
		dimensions: dimensions,
		items:      make(map[string][]domain.ContextItem),
	}
}

// Add stores items. The batch is rejected as a whole if any item has the
// wrong dimensionality or no owner.
func (s *EmbeddingStore) Add(_ context.Context, items []domain.ContextItem) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dimensions
	if dims == 0 {
		dims = len(items[0].Embedding)
	}
	for _, item := range items {
		if item.ProtocolID == "" {
			return fmt.Errorf("%w: item %s has no protocol", domain.ErrInvalidInput, item.ID)
		}
		if len(item.Embedding) != dims || dims == 0 {
			return fmt.Errorf("%w: item %s has %d dimensions, store has %d",
				domain.ErrInvalidInput, item.ID, len(item.Embedding), dims)
		}
	}

	s.dimensions = dims
	for _, item := range items {
		s.items[item.ProtocolID] = append(s.items[item.ProtocolID], copyItem(item))
	}
	return nil
}

// Query returns up to k of protocolID's items ranked by cosine similarity.
func (s *EmbeddingStore) Query(_ context.Context, protocolID string, vector []float32, k int) ([]domain.ScoredItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimensions != 0 && len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			domain.ErrInvalidInput, len(vector), s.dimensions)
	}

	results := rank.TopK(s.items[protocolID], vector, k)
	for i := range results {
		results[i].Item = copyItem(results[i].Item)
	}
	return results, nil
}

// Delete removes every item owned by protocolID.
func (s *EmbeddingStore) Delete(_ context.Context, protocolID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, protocolID)
	return nil
}

// DeleteItem removes one item.
func (s *EmbeddingStore) DeleteItem(_ context.Context, protocolID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.items[protocolID]
	for i, item := range items {
		if item.ID == itemID {
			s.items[protocolID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// Count returns the number of items owned by protocolID.
func (s *EmbeddingStore) Count(_ context.Context, protocolID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items[protocolID]), nil
}

// HasContentHash reports whether protocolID already holds a source with hash.
func (s *EmbeddingStore) HasContentHash(_ context.Context, protocolID, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items[protocolID] {
		if item.Metadata.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

// Dimensions returns the fixed vector size, or 0 if not yet fixed.
func (s *EmbeddingStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Close is a no-op.
func (s *EmbeddingStore) Close() error {
	return nil
}

func copyItem(item domain.ContextItem) domain.ContextItem {
	item.Embedding = append([]float32(nil), item.Embedding...)
	item.Metadata.Keywords = append([]string(nil), item.Metadata.Keywords...)
	return item
}
