package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage a protocol's reference material",
}

var contextCountCmd = &cobra.Command{
	Use:   "count [protocol-id]",
	Short: "Count stored context items",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextCount,
}

var contextRemoveCmd = &cobra.Command{
	Use:   "remove [protocol-id] [item-id]",
	Short: "Remove one context item",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextRemove,
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete [protocol-id]",
	Short: "Delete all context items of a protocol",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextDelete,
}

func init() {
	contextCmd.AddCommand(contextCountCmd)
	contextCmd.AddCommand(contextRemoveCmd)
	contextCmd.AddCommand(contextDeleteCmd)
	rootCmd.AddCommand(contextCmd)
}

func runContextCount(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	n, err := ingestService.Count(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to count context: %w", err)
	}
	cmd.Printf("%d\n", n)
	return nil
}

func runContextRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if err := ingestService.Remove(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	cmd.Printf("Removed %s from %s.\n", args[1], args[0])
	return nil
}

func runContextDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	n, err := ingestService.Count(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to count context: %w", err)
	}
	if err := ingestService.DeleteAll(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	cmd.Printf("Deleted %d context items from %s.\n", n, args[0])
	return nil
}
