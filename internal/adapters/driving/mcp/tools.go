package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// IngestInput is the input schema for the ingest_context tool.
type IngestInput struct {
	ProtocolID string `json:"protocol_id" jsonschema:"the protocol that owns the material"`
	SourceType string `json:"source_type,omitempty" jsonschema:"file, url or text (default text)"`
	Name       string `json:"name,omitempty" jsonschema:"display name of the source"`
	Format     string `json:"format,omitempty" jsonschema:"text/plain, text/markdown or text/html (default text/plain)"`
	Content    string `json:"content" jsonschema:"the extracted text of the source"`
}

// IngestOutput is the output schema for the ingest_context tool.
type IngestOutput struct {
	ProtocolID string   `json:"protocol_id"`
	ItemIDs    []string `json:"item_ids"`
	ItemsAdded int      `json:"items_added"`
	TotalItems int      `json:"total_items"`
}

// GenerateInput is the input schema for the generate_protocol tool.
type GenerateInput struct {
	ProtocolID  string   `json:"protocol_id" jsonschema:"the protocol to generate"`
	Domain      string   `json:"domain,omitempty" jsonschema:"the domain the protocol works in"`
	Goal        string   `json:"goal" jsonschema:"what the protocol should achieve"`
	Role        string   `json:"role,omitempty" jsonschema:"the role the AI plays"`
	Constraints []string `json:"constraints,omitempty" jsonschema:"rules the protocol must follow"`
	Async       bool     `json:"async,omitempty" jsonschema:"return a run id immediately instead of waiting"`
}

// GenerateOutput is the output schema for the generate_protocol tool.
// A failed run still carries the best draft produced.
type GenerateOutput struct {
	Run   RunView    `json:"run"`
	Draft *DraftView `json:"draft,omitempty"`
	Error string     `json:"error,omitempty"`
}

// StatusInput is the input schema for the get_pipeline_status tool.
type StatusInput struct {
	RunID string `json:"run_id" jsonschema:"the run id returned by generate_protocol"`
}

// RevalidateInput is the input schema for the revalidate_protocol tool.
type RevalidateInput struct {
	ProtocolID string     `json:"protocol_id,omitempty" jsonschema:"score the latest draft of this protocol"`
	Draft      *DraftView `json:"draft,omitempty" jsonschema:"score this draft instead"`
}

// DeleteContextInput is the input schema for the delete_context tool.
type DeleteContextInput struct {
	ProtocolID string `json:"protocol_id" jsonschema:"the protocol whose material is deleted"`
}

// DeleteContextOutput is the output schema for the delete_context tool.
type DeleteContextOutput struct {
	ProtocolID string `json:"protocol_id"`
	Deleted    int    `json:"deleted"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_context",
		Description: "Add reference material to a protocol's context",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_protocol",
		Description: "Synthesize, ground, exemplify and score a protocol draft",
	}, s.handleGenerate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_pipeline_status",
		Description: "Report the stage, warnings and score history of a generation run",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "revalidate_protocol",
		Description: "Score a protocol draft without regenerating it",
	}, s.handleRevalidate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_context",
		Description: "Delete all reference material owned by a protocol",
	}, s.handleDeleteContext)
}

// handleIngest handles the ingest_context tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	srcType := domain.SourceType(strings.ToLower(strings.TrimSpace(input.SourceType)))
	if srcType == "" {
		srcType = domain.SourceTypeText
	}
	name := input.Name
	if name == "" {
		name = string(srcType)
	}

	items, err := s.ports.Ingest.Ingest(ctx, domain.Source{
		ProtocolID: input.ProtocolID,
		Type:       srcType,
		Name:       name,
		Format:     input.Format,
		Content:    input.Content,
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}

	total, err := s.ports.Ingest.Count(ctx, input.ProtocolID)
	if err != nil {
		return nil, IngestOutput{}, fmt.Errorf("counting context items: %w", err)
	}

	output := IngestOutput{
		ProtocolID: input.ProtocolID,
		ItemIDs:    make([]string, len(items)),
		ItemsAdded: len(items),
		TotalItems: total,
	}
	for i := range items {
		output.ItemIDs[i] = items[i].ID
	}
	return nil, output, nil
}

// handleGenerate handles the generate_protocol tool invocation.
func (s *Server) handleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	req := domain.GenerateRequest{
		ProtocolID:  input.ProtocolID,
		Domain:      input.Domain,
		Goal:        input.Goal,
		Role:        input.Role,
		Constraints: input.Constraints,
	}

	if input.Async {
		runID, err := s.ports.Protocol.Start(ctx, req)
		if err != nil {
			return nil, GenerateOutput{}, err
		}
		run, err := s.ports.Protocol.Status(ctx, runID)
		if err != nil {
			return nil, GenerateOutput{}, err
		}
		return nil, GenerateOutput{Run: runView(run)}, nil
	}

	result, err := s.ports.Protocol.Generate(ctx, req)
	if err != nil {
		var perr *domain.PipelineError
		if !errors.As(err, &perr) {
			return nil, GenerateOutput{}, err
		}
		logger.Warn("generate_protocol run %s failed: %v", perr.RunID, perr.Err)
		output := GenerateOutput{Draft: draftView(perr.BestDraft), Error: err.Error()}
		if run, serr := s.ports.Protocol.Status(ctx, perr.RunID); serr == nil {
			output.Run = runView(run)
		} else {
			output.Run = RunView{RunID: perr.RunID, ProtocolID: req.ProtocolID, Stage: string(domain.StageFailed)}
		}
		return nil, output, nil
	}

	return nil, GenerateOutput{Run: runView(result.Run), Draft: draftView(result.Draft)}, nil
}

// handleStatus handles the get_pipeline_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, RunView, error) {
	run, err := s.ports.Protocol.Status(ctx, input.RunID)
	if err != nil {
		return nil, RunView{}, err
	}
	return nil, runView(run), nil
}

// handleRevalidate handles the revalidate_protocol tool invocation.
func (s *Server) handleRevalidate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RevalidateInput,
) (*mcp.CallToolResult, ValidationView, error) {
	var draft *domain.ProtocolDraft
	switch {
	case input.Draft != nil:
		draft = input.Draft.toDomain()
	case input.ProtocolID != "":
		latest, err := s.ports.Protocol.LatestDraft(ctx, input.ProtocolID)
		if err != nil {
			return nil, ValidationView{}, fmt.Errorf("loading latest draft: %w", err)
		}
		draft = latest
	default:
		return nil, ValidationView{}, fmt.Errorf("%w: draft or protocol_id is required", domain.ErrInvalidInput)
	}

	result, err := s.ports.Protocol.Revalidate(ctx, draft)
	if err != nil {
		return nil, ValidationView{}, err
	}
	return nil, validationView(result), nil
}

// handleDeleteContext handles the delete_context tool invocation.
func (s *Server) handleDeleteContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteContextInput,
) (*mcp.CallToolResult, DeleteContextOutput, error) {
	count, err := s.ports.Ingest.Count(ctx, input.ProtocolID)
	if err != nil {
		return nil, DeleteContextOutput{}, err
	}
	if err := s.ports.Ingest.DeleteAll(ctx, input.ProtocolID); err != nil {
		return nil, DeleteContextOutput{}, err
	}
	return nil, DeleteContextOutput{ProtocolID: input.ProtocolID, Deleted: count}, nil
}
