package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/custodia-labs/protosmith/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/normalisers"
	"github.com/custodia-labs/protosmith/internal/postprocessors"
)

const refundRule = "Refunds must be processed within 14 days."

func newTestIngestor(t *testing.T, embedder *mockEmbeddingService, settings domain.PipelineSettings) (*Ingestor, *memory.EmbeddingStore) {
	t.Helper()
	reg := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(reg)
	chain, err := postprocessors.BuildPipeline(reg, domain.ChainConfigFor(settings))
	require.NoError(t, err)

	store := memory.NewEmbeddingStore(testDims)
	return NewIngestor(normalisers.Defaults(), chain, embedder, store, settings), store
}

func textSource(protocolID, content string) domain.Source {
	return domain.Source{
		ProtocolID: protocolID,
		Type:       domain.SourceTypeText,
		Name:       "policy.txt",
		Format:     domain.FormatPlainText,
		Content:    content,
	}
}

func TestIngestor_Ingest(t *testing.T) {
	defer goleak.VerifyNone(t)

	ing, store := newTestIngestor(t, &mockEmbeddingService{}, domain.DefaultPipelineSettings())

	items, err := ing.Ingest(context.Background(), textSource("p1", refundRule))

	require.NoError(t, err)
	require.Len(t, items, 1)
	it := items[0]
	assert.NotEmpty(t, it.ID)
	assert.Equal(t, "p1", it.ProtocolID)
	assert.Equal(t, domain.SourceTypeText, it.SourceType)
	assert.Equal(t, refundRule, it.RawContent)
	assert.Len(t, it.Embedding, testDims)
	assert.Equal(t, "policy.txt", it.Metadata.SourceName)
	assert.Equal(t, len(refundRule), it.Metadata.Size)
	assert.InDelta(t, 1.0, it.Metadata.Confidence, 1e-9)
	assert.Contains(t, it.Metadata.Keywords, "refunds")
	assert.Len(t, it.Metadata.ContentHash, 64)

	n, err := store.Count(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestor_Ingest_ChunksLongSourcesConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)

	settings := domain.DefaultPipelineSettings()
	settings.ChunkSize = 100
	settings.ChunkOverlap = 15
	settings.EmbedConcurrency = 3
	gate := make(chan struct{})
	embedder := &mockEmbeddingService{gate: gate}
	ing, _ := newTestIngestor(t, embedder, settings)

	content := strings.Repeat("Refund requests need an order number and a reason. ", 40)
	type outcome struct {
		items []domain.ContextItem
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		items, err := ing.Ingest(context.Background(), textSource("p1", content))
		done <- outcome{items, err}
	}()

	require.Eventually(t, func() bool {
		inFlight, _ := embedder.concurrency()
		return inFlight == settings.EmbedConcurrency
	}, 5*time.Second, time.Millisecond, "embed calls overlap up to the limit")
	close(gate)

	var res outcome
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not finish")
	}

	require.NoError(t, res.err)
	require.Greater(t, len(res.items), 5)
	assert.Equal(t, len(res.items), embedder.callCount())
	_, peak := embedder.concurrency()
	assert.LessOrEqual(t, peak, settings.EmbedConcurrency)
	assert.Greater(t, peak, 1)
	for i, it := range res.items {
		assert.Equal(t, i, it.ChunkIndex)
		assert.Len(t, it.Embedding, testDims)
	}
}

func TestIngestor_Ingest_Dedupe(t *testing.T) {
	ing, store := newTestIngestor(t, &mockEmbeddingService{}, domain.DefaultPipelineSettings())
	ctx := context.Background()

	_, err := ing.Ingest(ctx, textSource("p1", refundRule))
	require.NoError(t, err)

	items, err := ing.Ingest(ctx, textSource("p1", refundRule))
	assert.Empty(t, items)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	var ie *domain.IngestionError
	require.ErrorAs(t, err, &ie)
	assert.False(t, ie.Retryable)

	// dedupe is scoped to the protocol
	_, err = ing.Ingest(ctx, textSource("p2", refundRule))
	assert.NoError(t, err)

	n, _ := store.Count(ctx, "p1")
	assert.Equal(t, 1, n)
}

func TestIngestor_Ingest_WithoutDedupeProducesDistinctItemsWithEqualVectors(t *testing.T) {
	settings := domain.DefaultPipelineSettings()
	settings.DedupeSources = false
	ing, _ := newTestIngestor(t, &mockEmbeddingService{}, settings)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, textSource("p1", refundRule))
	require.NoError(t, err)
	second, err := ing.Ingest(ctx, textSource("p1", refundRule))
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Embedding, second[0].Embedding)
}

func TestIngestor_Ingest_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       domain.Source
		embedErr  error
		wantErr   error
		retryable bool
	}{
		{
			name:    "unsupported format",
			src:     domain.Source{ProtocolID: "p1", Type: domain.SourceTypeFile, Name: "a.pdf", Format: "application/pdf", Content: "%PDF"},
			wantErr: domain.ErrUnsupportedFormat,
		},
		{
			name:    "missing protocol",
			src:     domain.Source{Type: domain.SourceTypeText, Name: "x", Content: "text"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "blank content",
			src:     textSource("p1", "   \n  "),
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:      "embedding failure",
			src:       textSource("p1", refundRule),
			embedErr:  errors.New("503 service unavailable"),
			wantErr:   domain.ErrEmbeddingService,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing, store := newTestIngestor(t, &mockEmbeddingService{err: tt.embedErr}, domain.DefaultPipelineSettings())

			items, err := ing.Ingest(context.Background(), tt.src)

			assert.Nil(t, items)
			assert.ErrorIs(t, err, tt.wantErr)
			var ie *domain.IngestionError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.retryable, ie.Retryable)
			assert.Equal(t, tt.src.Name, ie.SourceName)

			n, _ := store.Count(context.Background(), "p1")
			assert.Zero(t, n, "nothing is stored on failure")
		})
	}
}

func TestIngestor_Ingest_NoEmbedder(t *testing.T) {
	reg := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(reg)
	chain, err := postprocessors.BuildPipeline(reg, domain.ChainConfigFor(domain.DefaultPipelineSettings()))
	require.NoError(t, err)
	ing := NewIngestor(normalisers.Defaults(), chain, nil, memory.NewEmbeddingStore(testDims), domain.DefaultPipelineSettings())

	_, err = ing.Ingest(context.Background(), textSource("p1", refundRule))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIngestor_RemoveAndDeleteAll(t *testing.T) {
	ing, _ := newTestIngestor(t, &mockEmbeddingService{}, domain.DefaultPipelineSettings())
	ctx := context.Background()

	a, err := ing.Ingest(ctx, textSource("p1", refundRule))
	require.NoError(t, err)
	_, err = ing.Ingest(ctx, textSource("p1", "Shipping is free over 50 euros."))
	require.NoError(t, err)

	require.NoError(t, ing.Remove(ctx, "p1", a[0].ID))
	n, err := ing.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, ing.DeleteAll(ctx, "p1"))
	n, err = ing.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, ing.Remove(ctx, "", "x"), domain.ErrInvalidInput)
	assert.ErrorIs(t, ing.DeleteAll(ctx, ""), domain.ErrInvalidInput)
}
