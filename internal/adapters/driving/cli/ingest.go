package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

var ingestAttrs []string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index resume text files",
	Long: `Chunks, embeds and indexes plain-text resumes. Paths may be .txt
files or directories, which are scanned for .txt files. The document ID
is the file name without extension, so re-ingesting the same file
updates it in place. Pass "-" to read one resume from stdin.

Attributes attached with --attr become filterable metadata:

  resumatch ingest --attr location=nyc --attr level=senior resumes/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVarP(&ingestAttrs, "attr", "a", nil, "attribute key=value applied to every ingested document")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := initEngine(ctx); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	attrs, err := parseAttrs(ingestAttrs)
	if err != nil {
		return err
	}

	docs, err := collectDocuments(args, attrs)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Println("No .txt files found.")
		return nil
	}

	batchID := uuid.NewString()

	var indexed, unchanged, failed int
	for _, doc := range docs {
		report, err := ingestService.Ingest(ctx, doc)
		if err != nil {
			failed++
			cmd.PrintErrf("  %s: %v\n", doc.ID, err)
			continue
		}
		report.BatchID = batchID

		switch report.Status {
		case domain.IngestStatusUnchanged:
			unchanged++
			cmd.Printf("  %s: unchanged\n", report.DocumentID)
		case domain.IngestStatusEmpty:
			indexed++
			cmd.Printf("  %s: empty\n", report.DocumentID)
		default:
			indexed++
			if report.Partial() {
				cmd.Printf("  %s: indexed %d of %d chunks (%d failed)\n",
					report.DocumentID, report.ChunksIndexed, report.ChunksTotal, len(report.Failures))
			} else {
				cmd.Printf("  %s: indexed %d chunks\n", report.DocumentID, report.ChunksIndexed)
			}
		}
	}

	if err := ingestService.Persist(ctx); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	cmd.Printf("\nBatch %s: %d indexed, %d unchanged, %d failed\n", batchID, indexed, unchanged, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

// collectDocuments expands args into documents. Directories contribute
// their .txt files; "-" reads stdin under a generated ID.
func collectDocuments(args []string, attrs map[string]string) ([]domain.Document, error) {
	var docs []domain.Document
	for _, arg := range args {
		if arg == "-" {
			content, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			docs = append(docs, domain.Document{
				ID:         uuid.NewString(),
				Content:    string(content),
				Attributes: attrs,
			})
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if info.IsDir() {
			paths, err := filepath.Glob(filepath.Join(arg, "*.txt"))
			if err != nil {
				return nil, err
			}
			sort.Strings(paths)
			for _, path := range paths {
				doc, err := readDocument(path, attrs)
				if err != nil {
					return nil, err
				}
				docs = append(docs, doc)
			}
			continue
		}

		doc, err := readDocument(arg, attrs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func readDocument(path string, attrs map[string]string) (domain.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))

	return domain.Document{
		ID:         id,
		Path:       path,
		Content:    string(content),
		Attributes: attrs,
	}, nil
}

// parseAttrs converts key=value flags into an attribute map.
func parseAttrs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: attribute %q must be key=value", domain.ErrInvalidArgument, pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}
