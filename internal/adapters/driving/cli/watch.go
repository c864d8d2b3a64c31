package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and ingest resumes as they change",
	Long: `Watches a directory for new or modified .txt files and ingests them
as they appear. Content-hash idempotence applies, so editor save
storms and duplicate events re-index nothing. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringArrayVarP(&ingestAttrs, "attr", "a", nil, "attribute key=value applied to every ingested document")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := args[0]
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	cmd.Printf("Watching %s for resume files. Ctrl-C to stop.\n", dir)

	for {
		select {
		case <-ctx.Done():
			if err := ingestService.Persist(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("persisting index: %w", err)
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".txt") {
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				base := filepath.Base(event.Name)
				id := strings.TrimSuffix(base, filepath.Ext(base))
				if err := ingestService.Delete(ctx, id); err != nil {
					if !errors.Is(err, domain.ErrNotFound) {
						cmd.PrintErrf("  %s: %v\n", id, err)
					}
					continue
				}
				cmd.Printf("  %s: removed\n", id)
				if err := ingestService.Persist(ctx); err != nil {
					cmd.PrintErrf("  persisting index: %v\n", err)
				}
				continue
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			doc, err := readDocument(event.Name, attrs)
			if err != nil {
				// The file may have vanished between event and read.
				logger.Warn("reading %s: %v", event.Name, err)
				continue
			}

			report, err := ingestService.Ingest(ctx, doc)
			if err != nil {
				cmd.PrintErrf("  %s: %v\n", doc.ID, err)
				continue
			}
			if report.Status == domain.IngestStatusUnchanged {
				continue
			}

			cmd.Printf("  %s: indexed %d of %d chunks\n", report.DocumentID, report.ChunksIndexed, report.ChunksTotal)
			if err := ingestService.Persist(ctx); err != nil {
				cmd.PrintErrf("  persisting index: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		}
	}
}
