// Package cli provides the protosmith command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/protosmith/internal/core/ports/driving"
	"github.com/custodia-labs/protosmith/internal/logger"
)

var (
	version = "dev"

	ingestService   driving.IngestService
	protocolService driving.ProtocolService
	settingsService driving.SettingsService
)

var (
	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "protosmith",
	Short: "Context-grounded protocol synthesis",
	Long: `protosmith turns a goal and a set of reference documents into a
structured AI protocol: a system prompt, input/output schemas, constraints
and worked examples, scored for quality and improved until it passes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if logFile != "" {
			if err := logger.SetLogFile(logFile); err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file (rotated)")
}

// Services holds the driving ports the commands run against.
type Services struct {
	Ingest   driving.IngestService
	Protocol driving.ProtocolService
	Settings driving.SettingsService
}

// SetServices injects the services used by all commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	protocolService = s.Protocol
	settingsService = s.Settings
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
