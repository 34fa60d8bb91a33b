package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

func namedBuilder(name string) BuilderFunc {
	return func(_ map[string]any) (driven.PostProcessor, error) {
		return &stubProcessor{name: name}, nil
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Names())
	assert.False(t, r.Has("chunker"))

	r.Register("keywords", namedBuilder("keywords"))
	r.Register("chunker", namedBuilder("chunker"))
	assert.True(t, r.Has("chunker"))
	assert.Equal(t, []string{"chunker", "keywords"}, r.Names())

	proc, err := r.Build("chunker", nil)
	require.NoError(t, err)
	assert.Equal(t, "chunker", proc.Name())
}

func TestRegistry_BuildErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("chunker", namedBuilder("chunker"))
	badCfg := errors.New("chunk_size must be positive")
	r.Register("strict", func(_ map[string]any) (driven.PostProcessor, error) { return nil, badCfg })

	_, err := r.Build("summariser", nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "chunker")

	_, err = r.Build("strict", nil)
	require.ErrorIs(t, err, badCfg)
	assert.Contains(t, err.Error(), "building processor strict")
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	for _, name := range []string{"chunker", "keywords"} {
		if !r.Has(name) {
			t.Errorf("expected %q to be registered after RegisterDefaults", name)
		}
	}
}

func TestBuildPipeline_FromSettings(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	settings := domain.DefaultPipelineSettings()
	settings.ChunkSize = 40
	settings.ChunkOverlap = 0

	p, err := BuildPipeline(r, domain.ChainConfigFor(settings))
	if err != nil {
		t.Fatalf("BuildPipeline failed: %v", err)
	}
	if got := p.Names(); len(got) != 2 || got[0] != "chunker" || got[1] != "keywords" {
		t.Fatalf("expected chunker then keywords, got %v", got)
	}

	doc := &domain.Document{ID: "d", Content: "Refunds must be processed within fourteen days of purchase. Refunds need receipts."}
	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected content split into several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if _, ok := c.Metadata["keywords"].([]string); !ok {
			t.Errorf("chunk %d missing keywords", i)
		}
	}
}

func TestBuildPipeline_Errors(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	if _, err := BuildPipeline(r, domain.ProcessorChainConfig{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty chain, got %v", err)
	}
	if _, err := BuildPipeline(r, domain.ProcessorChainConfig{Processors: []string{"summariser"}}); err == nil {
		t.Error("expected error for unknown processor")
	}
	if _, err := BuildPipeline(r, domain.ProcessorChainConfig{Processors: []string{"chunker", "chunker"}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for repeated processor, got %v", err)
	}
}

func TestBuildChunker_ZeroOverlapHonoured(t *testing.T) {
	proc, err := buildChunker(map[string]any{"chunk_size": 10, "overlap": 0})
	if err != nil {
		t.Fatalf("buildChunker failed: %v", err)
	}

	chunks, err := proc.Process(context.Background(), &domain.Document{Content: "0123456789abcdefghij"}, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(chunks) != 2 || chunks[1].Content != "abcdefghij" {
		t.Errorf("expected two disjoint chunks, got %+v", chunks)
	}
}

func TestBuildKeywords(t *testing.T) {
	proc, err := buildKeywords(map[string]any{"max": int64(1)})
	if err != nil {
		t.Fatalf("buildKeywords failed: %v", err)
	}

	chunks, err := proc.Process(context.Background(), nil, []domain.Chunk{{Content: "refund refund policy"}})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := chunks[0].Metadata["keywords"].([]string); len(got) != 1 || got[0] != "refund" {
		t.Errorf("unexpected keywords %v", got)
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		key      string
		expected int
	}{
		{"int value", map[string]any{"size": 100}, "size", 100},
		{"int64 value", map[string]any{"size": int64(200)}, "size", 200},
		{"float64 value", map[string]any{"size": float64(300)}, "size", 300},
		{"string value", map[string]any{"size": "400"}, "size", 0},
		{"missing key", map[string]any{"other": 100}, "size", 0},
		{"nil config", nil, "size", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getIntFromConfig(tt.cfg, tt.key)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}
