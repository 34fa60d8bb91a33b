// Package mcp provides an MCP (Model Context Protocol) server adapter for protosmith.
// It lets AI assistants ingest reference material, generate protocols and
// revalidate drafts through the same services the CLI uses.
package mcp

import "errors"

var (
	// ErrMissingProtocolService is returned when the protocol service is not provided.
	ErrMissingProtocolService = errors.New("mcp: protocol service is required")

	// ErrMissingIngestService is returned when the ingest service is not provided.
	ErrMissingIngestService = errors.New("mcp: ingest service is required")
)
