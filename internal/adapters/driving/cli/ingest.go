package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

var (
	ingestText   string
	ingestName   string
	ingestFormat string
	ingestURL    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [protocol-id] [file...]",
	Short: "Add reference material to a protocol",
	Long: `Chunks, embeds and stores reference material for a protocol.

Files are read as text; the format is taken from the extension (.md, .html)
unless --format is given. Use "-" to read from stdin, --text to pass the
material inline, or --url with stdin holding the already fetched page.

Examples:
  protosmith ingest refunds policy.md faq.html
  protosmith ingest refunds --text "Refunds must be processed within 14 days."
  curl -s https://example.com/terms | protosmith ingest refunds --url https://example.com/terms`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest this text instead of files")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "display name for --text or stdin material")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "format tag (text/plain, text/markdown, text/html)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "origin URL of material read from stdin")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	protocolID := args[0]
	sources, err := collectSources(cmd.InOrStdin(), protocolID, args[1:])
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("nothing to ingest: pass files, \"-\", --text or --url")
	}

	var failed []error
	total := 0
	for _, src := range sources {
		items, err := ingestService.Ingest(cmd.Context(), src)
		if err != nil {
			var ierr *domain.IngestionError
			if errors.As(err, &ierr) && ierr.Retryable {
				cmd.Printf("  %s: %v (retryable)\n", src.Name, ierr.Err)
			} else {
				cmd.Printf("  %s: %v\n", src.Name, err)
			}
			failed = append(failed, err)
			continue
		}
		total += len(items)
		cmd.Printf("  %s: %d items\n", src.Name, len(items))
	}

	count, err := ingestService.Count(cmd.Context(), protocolID)
	if err == nil {
		cmd.Printf("Ingested %d items; protocol %s now holds %d.\n", total, protocolID, count)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d sources failed: %w", len(failed), len(sources), errors.Join(failed...))
	}
	return nil
}

// collectSources builds one Source per file argument plus any inline text.
func collectSources(stdin io.Reader, protocolID string, paths []string) ([]domain.Source, error) {
	var sources []domain.Source

	if ingestText != "" {
		sources = append(sources, domain.Source{
			ProtocolID: protocolID,
			Type:       domain.SourceTypeText,
			Name:       nameOr(ingestName, "text"),
			Format:     formatOr(ingestFormat, domain.FormatPlainText),
			Content:    ingestText,
		})
	}

	if ingestURL != "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		sources = append(sources, domain.Source{
			ProtocolID: protocolID,
			Type:       domain.SourceTypeURL,
			Name:       ingestURL,
			Format:     formatOr(ingestFormat, domain.FormatHTML),
			Content:    string(data),
		})
	}

	for _, path := range paths {
		if path == "-" {
			if ingestURL != "" {
				return nil, errors.New("stdin is already used by --url")
			}
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			sources = append(sources, domain.Source{
				ProtocolID: protocolID,
				Type:       domain.SourceTypeText,
				Name:       nameOr(ingestName, "stdin"),
				Format:     formatOr(ingestFormat, domain.FormatPlainText),
				Content:    string(data),
			})
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		sources = append(sources, domain.Source{
			ProtocolID: protocolID,
			Type:       domain.SourceTypeFile,
			Name:       filepath.Base(path),
			Format:     formatOr(ingestFormat, formatForPath(path)),
			Content:    string(data),
		})
	}

	return sources, nil
}

// formatForPath maps a file extension to a format tag.
func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return domain.FormatMarkdown
	case ".html", ".htm":
		return domain.FormatHTML
	default:
		return domain.FormatPlainText
	}
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func formatOr(format, fallback string) string {
	if format != "" {
		return format
	}
	return fallback
}
