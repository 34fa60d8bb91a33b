package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

// outputFormat selects how drafts and results are printed.
type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case "", outputText:
		return outputText, nil
	case outputJSON, outputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (text, json, yaml)", s)
	}
}

// writeStructured prints v as JSON or YAML.
func writeStructured(cmd *cobra.Command, format outputFormat, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case outputYAML:
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(strings.TrimRight(string(data), "\n"))
	return nil
}

func printDraft(cmd *cobra.Command, d *domain.ProtocolDraft) {
	cmd.Printf("Protocol %s (draft %s, v%d, %s)\n", d.ProtocolID, d.ID, d.Version, d.Status)
	if d.Score != nil {
		cmd.Printf("  Score: %.1f\n", d.Score.Overall)
	}
	cmd.Println()

	cmd.Println("[System prompt]")
	cmd.Println(indent(d.SystemPrompt))
	if d.UserGuidance != "" {
		cmd.Println()
		cmd.Println("[User guidance]")
		cmd.Println(indent(d.UserGuidance))
	}

	if len(d.Constraints) > 0 {
		cmd.Println()
		cmd.Println("[Constraints]")
		for _, c := range d.Constraints {
			cmd.Printf("  - %s\n", c)
		}
	}

	if len(d.Examples) > 0 {
		cmd.Println()
		cmd.Printf("[Examples] %d\n", len(d.Examples))
		for i, ex := range d.Examples {
			cmd.Printf("  %d. in:  %s\n", i+1, compact(ex.Input))
			cmd.Printf("     out: %s\n", compact(ex.Output))
		}
	}

	if len(d.References) > 0 {
		cmd.Println()
		cmd.Println("[References]")
		for _, ref := range d.References {
			cmd.Printf("  %s (%.2f)\n", ref.SourceName, ref.Similarity)
		}
	}
}

func printValidation(cmd *cobra.Command, r domain.ValidationResult) {
	s := r.Score
	cmd.Printf("Score: %.1f (draft v%d)\n", s.Overall, r.DraftVersion)
	cmd.Printf("  Completeness:       %.0f\n", s.Completeness)
	cmd.Printf("  Clarity:            %.0f\n", s.Clarity)
	cmd.Printf("  Actionability:      %.0f\n", s.Actionability)
	cmd.Printf("  Domain alignment:   %.0f\n", s.DomainAlignment)
	cmd.Printf("  Hallucination risk: %.0f\n", s.HallucinationRisk)
	for _, line := range r.Feedback() {
		cmd.Printf("  - %s\n", line)
	}
}

func printRun(cmd *cobra.Command, run *domain.PipelineRun) {
	cmd.Printf("Run %s: %s", run.ID, run.Stage)
	if run.IterationCount > 0 {
		cmd.Printf(" after %d improvement(s)", run.IterationCount)
	}
	cmd.Println()
	for _, h := range run.History {
		cmd.Printf("  v%d scored %.1f\n", h.DraftVersion, h.Score.Overall)
	}
	for _, w := range run.Warnings {
		cmd.Printf("  warning: %s\n", w)
	}
	if run.LastError != "" {
		cmd.Printf("  error: %s\n", run.LastError)
	}
}

// reportFailure prints what a failed run left behind.
func reportFailure(cmd *cobra.Command, err error) {
	var perr *domain.PipelineError
	if !errors.As(err, &perr) || perr.BestDraft == nil {
		return
	}
	cmd.Printf("Run %s failed at %s. Best draft produced:\n\n", perr.RunID, perr.Stage)
	printDraft(cmd, perr.BestDraft)
	cmd.Println()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}

func compact(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
