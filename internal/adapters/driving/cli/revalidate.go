package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

var (
	revalidateFile   string
	revalidateOutput string
)

var revalidateCmd = &cobra.Command{
	Use:   "revalidate [protocol-id]",
	Short: "Score a protocol draft again",
	Long: `Scores a draft without regenerating it. By default the latest draft of
the protocol is scored; --file scores an edited draft (YAML or JSON) instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRevalidate,
}

func init() {
	revalidateCmd.Flags().StringVarP(&revalidateFile, "file", "f", "", "score the draft in this file")
	revalidateCmd.Flags().StringVarP(&revalidateOutput, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(revalidateCmd)
}

func runRevalidate(cmd *cobra.Command, args []string) error {
	if protocolService == nil {
		return errors.New("protocol service not configured")
	}
	format, err := parseOutputFormat(revalidateOutput)
	if err != nil {
		return err
	}

	var draft *domain.ProtocolDraft
	switch {
	case revalidateFile != "":
		draft, err = readDraftFile(revalidateFile)
	case len(args) == 1:
		draft, err = protocolService.LatestDraft(cmd.Context(), args[0])
	default:
		return errors.New("pass a protocol id or --file")
	}
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}

	result, err := protocolService.Revalidate(cmd.Context(), draft)
	if err != nil {
		return fmt.Errorf("revalidation failed: %w", err)
	}

	if format != outputText {
		return writeStructured(cmd, format, result)
	}
	printValidation(cmd, result)
	return nil
}

// readDraftFile decodes a draft; YAML decoding also accepts JSON.
func readDraftFile(path string) (*domain.ProtocolDraft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var draft domain.ProtocolDraft
	if err := yaml.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if draft.Version < 1 {
		draft.Version = 1
	}
	return &draft, nil
}
