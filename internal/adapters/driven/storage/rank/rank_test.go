package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestTopK_OrdersBySimilarity(t *testing.T) {
	now := time.Now()
	items := []domain.ContextItem{
		{ID: "far", Embedding: []float32{0, 1}, CreatedAt: now},
		{ID: "near", Embedding: []float32{1, 0.1}, CreatedAt: now},
		{ID: "mid", Embedding: []float32{1, 1}, CreatedAt: now},
	}

	got := TopK(items, []float32{1, 0}, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Item.ID)
	assert.Equal(t, "mid", got[1].Item.ID)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
}

func TestTopK_TiesPreferNewestThenChunkIndex(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	v := []float32{1, 0}
	items := []domain.ContextItem{
		{ID: "old", Embedding: v, CreatedAt: older},
		{ID: "new-1", Embedding: v, CreatedAt: newer, ChunkIndex: 1},
		{ID: "new-0", Embedding: v, CreatedAt: newer, ChunkIndex: 0},
	}

	got := TopK(items, v, 3)

	ids := []string{got[0].Item.ID, got[1].Item.ID, got[2].Item.ID}
	assert.Equal(t, []string{"new-0", "new-1", "old"}, ids)
}

func TestTopK_NonPositiveK(t *testing.T) {
	items := []domain.ContextItem{{ID: "a", Embedding: []float32{1}}}
	assert.Empty(t, TopK(items, []float32{1}, 0))
	assert.Empty(t, TopK(items, []float32{1}, -3))
	assert.NotNil(t, TopK(nil, []float32{1}, 5))
}
