package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// storeRetryDelay is the pause before the single store retry.
const storeRetryDelay = 200 * time.Millisecond

// ContextQuery turns query text into a vector and ranks a protocol's
// ContextItems against it.
type ContextQuery struct {
	store      driven.EmbeddingStore
	embedder   driven.EmbeddingService
	retryDelay time.Duration
}

// NewContextQuery creates a query helper over a store and embedder.
func NewContextQuery(store driven.EmbeddingStore, embedder driven.EmbeddingService) *ContextQuery {
	return &ContextQuery{
		store:      store,
		embedder:   embedder,
		retryDelay: storeRetryDelay,
	}
}

// Query returns up to k items of protocolID ranked by similarity to text.
// A protocol with no items returns an empty result without embedding.
// Failures wrap ErrContextQuery.
func (q *ContextQuery) Query(ctx context.Context, protocolID, text string, k int) ([]domain.ScoredItem, error) {
	if k <= 0 {
		return []domain.ScoredItem{}, nil
	}
	if q.store == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrContextQuery, domain.ErrStoreUnavailable)
	}

	var count int
	err := q.withRetry(ctx, func() error {
		var err error
		count, err = q.store.Count(ctx, protocolID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrContextQuery, err)
	}
	if count == 0 {
		return []domain.ScoredItem{}, nil
	}

	if q.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrContextQuery, domain.ErrEmbeddingUnavailable)
	}
	vector, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", domain.ErrContextQuery, domain.ErrEmbeddingService, err)
	}

	var items []domain.ScoredItem
	err = q.withRetry(ctx, func() error {
		var err error
		items, err = q.store.Query(ctx, protocolID, vector, k)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrContextQuery, err)
	}
	return items, nil
}

// withRetry runs fn and, when it fails with ErrStoreUnavailable, runs it
// once more after a short pause.
func (q *ContextQuery) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}

	logger.Debug("embedding store unavailable, retrying once: %v", err)
	t := time.NewTimer(q.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return err
	case <-t.C:
	}
	return fn()
}
