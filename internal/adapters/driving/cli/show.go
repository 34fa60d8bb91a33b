package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show [protocol-id]",
	Short: "Show the latest draft of a protocol",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	if protocolService == nil {
		return errors.New("protocol service not configured")
	}
	format, err := parseOutputFormat(showOutput)
	if err != nil {
		return err
	}

	draft, err := protocolService.LatestDraft(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no draft for protocol %s: run 'protosmith generate' first", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}

	if format != outputText {
		return writeStructured(cmd, format, draft)
	}
	printDraft(cmd, draft)
	return nil
}
