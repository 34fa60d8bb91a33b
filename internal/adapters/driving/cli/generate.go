package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driving"
)

// progressInterval is how often a running generation is polled.
var progressInterval = 500 * time.Millisecond

var (
	generateFile        string
	generateDomain      string
	generateGoal        string
	generateRole        string
	generateConstraints []string
	generateOutput      string
)

var generateCmd = &cobra.Command{
	Use:   "generate [protocol-id]",
	Short: "Generate a protocol draft",
	Long: `Runs the full pipeline for a protocol: analyse its context, synthesise
a draft, ground it in the context, add examples, then score and improve it
until it reaches the quality threshold.

The request comes from flags or from a YAML file:

  protocol_id: refunds
  domain: e-commerce support
  goal: Answer customer refund questions
  role: support agent
  constraints:
    - Never promise a refund before the order is verified

Examples:
  protosmith generate refunds --goal "Answer customer refund questions"
  protosmith generate --file request.yaml --output yaml > draft.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateFile, "file", "f", "", "read the request from a YAML file")
	generateCmd.Flags().StringVar(&generateDomain, "domain", "", "domain the protocol works in")
	generateCmd.Flags().StringVar(&generateGoal, "goal", "", "what the protocol should achieve")
	generateCmd.Flags().StringVar(&generateRole, "role", "", "role the AI plays")
	generateCmd.Flags().StringArrayVarP(&generateConstraints, "constraint", "c", nil, "constraint to honour (repeatable)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if protocolService == nil {
		return errors.New("protocol service not configured")
	}

	format, err := parseOutputFormat(generateOutput)
	if err != nil {
		return err
	}

	req, err := buildGenerateRequest(args)
	if err != nil {
		return err
	}

	var result *domain.PipelineResult
	if format == outputText && isTerminal(cmd.OutOrStdout()) {
		result, err = generateWithProgress(cmd.Context(), cmd, protocolService, req)
	} else {
		result, err = protocolService.Generate(cmd.Context(), req)
	}
	if err != nil {
		if format == outputText {
			reportFailure(cmd, err)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	if format != outputText {
		return writeStructured(cmd, format, result.Draft)
	}
	printRun(cmd, result.Run)
	cmd.Println()
	printDraft(cmd, result.Draft)
	return nil
}

// buildGenerateRequest merges the request file with flags; flags win.
func buildGenerateRequest(args []string) (domain.GenerateRequest, error) {
	var req domain.GenerateRequest
	if generateFile != "" {
		data, err := os.ReadFile(generateFile)
		if err != nil {
			return req, fmt.Errorf("reading request file: %w", err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parsing request file: %w", err)
		}
	}

	if len(args) > 0 {
		req.ProtocolID = args[0]
	}
	if generateDomain != "" {
		req.Domain = generateDomain
	}
	if generateGoal != "" {
		req.Goal = generateGoal
	}
	if generateRole != "" {
		req.Role = generateRole
	}
	req.Constraints = append(req.Constraints, generateConstraints...)

	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("%w: a protocol id and a goal are required", err)
	}
	return req, nil
}

// generateWithProgress starts a run and prints each stage as it is entered.
func generateWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	svc driving.ProtocolService,
	req domain.GenerateRequest,
) (*domain.PipelineResult, error) {
	runID, err := svc.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		result *domain.PipelineResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := svc.Wait(ctx, runID)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	var last domain.Stage
	for {
		select {
		case o := <-done:
			if ctx.Err() != nil {
				// Interrupted: stop the run at its next stage boundary.
				_ = svc.Cancel(context.WithoutCancel(ctx), runID)
				return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
			}
			return o.result, o.err
		case <-ticker.C:
			// Best effort; the final outcome comes from Wait.
			run, err := svc.Status(ctx, runID)
			if err != nil || run == nil || run.Stage == last {
				continue
			}
			last = run.Stage
			if run.Stage == domain.StageImproving {
				cmd.Printf("%s (iteration %d)...\n", run.Stage, run.IterationCount)
			} else {
				cmd.Printf("%s...\n", run.Stage)
			}
		}
	}
}
