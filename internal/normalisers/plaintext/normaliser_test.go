package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

func TestNormaliser_Metadata(t *testing.T) {
	n := New()

	assert.Contains(t, n.SupportedFormats(), "text/plain")
	assert.Contains(t, n.SupportedFormats(), "application/json")
	assert.Equal(t, 5, n.Priority())
	assert.InDelta(t, 1.0, n.Confidence(), 1e-9)
}

func TestNormalise_Success(t *testing.T) {
	src := &domain.Source{
		ProtocolID: "p1",
		Type:       domain.SourceTypeText,
		Name:       "policy note",
		Content:    "  Refunds must be processed within 14 days.\r\nNo exceptions.\n\n",
	}

	doc, err := New().Normalise(context.Background(), src)

	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "p1", doc.ProtocolID)
	assert.Equal(t, domain.SourceTypeText, doc.SourceType)
	assert.Equal(t, "policy note", doc.Title)
	assert.Equal(t, "Refunds must be processed within 14 days.\nNo exceptions.", doc.Content)
	assert.Equal(t, "text/plain", doc.Metadata["format"])
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestNormalise_NilSource(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_UniqueIDs(t *testing.T) {
	src := &domain.Source{ProtocolID: "p1", Type: domain.SourceTypeText, Content: "same"}

	a, err := New().Normalise(context.Background(), src)
	require.NoError(t, err)
	b, err := New().Normalise(context.Background(), src)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Content, b.Content)
}
