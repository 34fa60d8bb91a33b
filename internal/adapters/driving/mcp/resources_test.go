package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

func TestExtractProtocolID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid draft URI", uri: "protosmith://protocols/p-123/draft", expected: "p-123"},
		{name: "invalid prefix", uri: "file://protocols/p-123/draft", expected: ""},
		{name: "missing draft suffix", uri: "protosmith://protocols/p-123", expected: ""},
		{name: "empty id", uri: "protosmith://protocols//draft", expected: ""},
		{name: "bare draft segment", uri: "protosmith://protocols/draft", expected: ""},
		{name: "nested path", uri: "protosmith://protocols/a/b/draft", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractProtocolID(tt.uri))
		})
	}
}

func TestExtractRunID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid run URI", uri: "protosmith://runs/r-456", expected: "r-456"},
		{name: "invalid prefix", uri: "file://runs/r-456", expected: ""},
		{name: "nested path", uri: "protosmith://runs/r-456/x", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractRunID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDraftResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the latest draft", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{draft: sampleDraft()}, nil)

		result, err := server.handleDraftResource(ctx, makeReadResourceRequest("protosmith://protocols/p1/draft"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "Refunds must be processed within 14 days")
		assert.Contains(t, result.Contents[0].Text, `"version": 3`)
	})

	t.Run("unknown protocol is not found", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{}, nil)

		_, err := server.handleDraftResource(ctx, makeReadResourceRequest("protosmith://protocols/p1/draft"))

		require.Error(t, err)
	})

	t.Run("invalid URI is not found", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{draft: sampleDraft()}, nil)

		_, err := server.handleDraftResource(ctx, makeReadResourceRequest("protosmith://invalid/uri"))

		require.Error(t, err)
	})
}

func TestServer_handleRunResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the run", func(t *testing.T) {
		protocol := &mockProtocolService{run: &domain.PipelineRun{ID: "r1", Stage: domain.StageValidating}}
		server := newTestServer(t, protocol, nil)

		result, err := server.handleRunResource(ctx, makeReadResourceRequest("protosmith://runs/r1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, `"stage": "VALIDATING"`)
	})

	t.Run("status failure is wrapped", func(t *testing.T) {
		server := newTestServer(t, &mockProtocolService{statusErr: errors.New("boom")}, nil)

		_, err := server.handleRunResource(ctx, makeReadResourceRequest("protosmith://runs/r1"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting run status")
	})
}
