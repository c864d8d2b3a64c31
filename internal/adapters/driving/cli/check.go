package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify index and metadata consistency",
	Long: `Compares the chunk IDs held by the vector index against the chunk
metadata records. The two must correspond exactly; any orphan on either
side indicates corruption and makes the command exit non-zero.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := initEngine(ctx); err != nil {
		return err
	}
	if checkService == nil {
		return errors.New("consistency checker not configured")
	}

	report, err := checkService.Check(ctx)
	if err != nil && !errors.Is(err, domain.ErrIndexCorruption) {
		return fmt.Errorf("check failed: %w", err)
	}

	cmd.Printf("Documents: %d\n", report.DocumentCount)
	cmd.Printf("Vectors:   %d\n", report.VectorCount)
	cmd.Printf("Metadata:  %d\n", report.MetadataCount)

	if report.Consistent() {
		cmd.Println("Index and metadata are consistent.")
		return nil
	}

	for _, id := range report.VectorsWithoutMetadata {
		cmd.PrintErrf("  vector without metadata: %s\n", id)
	}
	for _, id := range report.MetadataWithoutVectors {
		cmd.PrintErrf("  metadata without vector: %s\n", id)
	}
	return err
}
