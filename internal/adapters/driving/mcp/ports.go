package mcp

import (
	"github.com/custodia-labs/protosmith/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Protocol runs the generation pipeline.
	Protocol driving.ProtocolService

	// Ingest manages a protocol's reference material.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Protocol == nil {
		return ErrMissingProtocolService
	}
	if p.Ingest == nil {
		return ErrMissingIngestService
	}
	return nil
}
