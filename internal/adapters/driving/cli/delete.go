package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a resume from the index",
	Long:  `Removes a document and all its chunks from the vector index and the metadata store.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := initEngine(ctx); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docID := args[0]
	if err := ingestService.Delete(ctx, docID); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	if err := ingestService.Persist(ctx); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	cmd.Printf("Deleted %s\n", docID)
	return nil
}
