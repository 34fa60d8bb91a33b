// Package driving defines what the CLI and the MCP server can ask of the
// core: ingest context, run and inspect protocol pipelines, manage settings.
// The services package implements these interfaces.
package driving
