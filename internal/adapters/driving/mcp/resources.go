package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for protosmith resources.
	uriScheme = "protosmith://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "protocols/{protocolId}/draft",
		Name:        "protocol-draft",
		Description: "Latest draft snapshot of a protocol",
		MIMEType:    "application/json",
	}, s.handleDraftResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}",
		Name:        "pipeline-run",
		Description: "Status of a generation run",
		MIMEType:    "application/json",
	}, s.handleRunResource)
}

// handleDraftResource returns the latest draft of a protocol.
func (s *Server) handleDraftResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// protosmith://protocols/{protocolId}/draft
	protocolID := extractProtocolID(req.Params.URI)
	if protocolID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	draft, err := s.ports.Protocol.LatestDraft(ctx, protocolID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}

	return jsonResource(req.Params.URI, draftView(draft))
}

// handleRunResource returns the status of a run.
func (s *Server) handleRunResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// protosmith://runs/{runId}
	runID := extractRunID(req.Params.URI)
	if runID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	run, err := s.ports.Protocol.Status(ctx, runID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run status: %w", err)
	}

	return jsonResource(req.Params.URI, runView(run))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractProtocolID extracts the protocol ID from a URI like protosmith://protocols/{protocolId}/draft.
func extractProtocolID(uri string) string {
	const prefix = uriScheme + "protocols/"
	const suffix = "/draft"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(rest, suffix) {
		return ""
	}
	id := strings.TrimSuffix(rest, suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractRunID extracts the run ID from a URI like protosmith://runs/{runId}.
func extractRunID(uri string) string {
	const prefix = uriScheme + "runs/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
