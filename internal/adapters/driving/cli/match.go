package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

var (
	matchLimit   int
	matchFilters []string
	matchFanOut  int
	matchMean    bool
	matchJSON    bool
	matchChunks  bool
)

var matchCmd = &cobra.Command{
	Use:   "match [job description]",
	Short: "Rank indexed resumes against a job description",
	Long: `Embeds the job description and returns the best-matching resumes,
scored by embedding similarity. Each result lists the contributing
chunks so a score can be traced back to concrete resume text.

Filters restrict results by document attributes set at ingest time:

  resumatch match --filter location=nyc "senior Go engineer"`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().IntVarP(&matchLimit, "limit", "n", 10, "maximum number of results")
	matchCmd.Flags().StringArrayVarP(&matchFilters, "filter", "f", nil, "attribute filter key=value (repeatable, conjunctive)")
	matchCmd.Flags().IntVar(&matchFanOut, "fan-out", 0, "candidate oversampling multiplier (0 = configured default)")
	matchCmd.Flags().BoolVar(&matchMean, "mean", false, "score documents by mean chunk score instead of best chunk")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output results as JSON")
	matchCmd.Flags().BoolVar(&matchChunks, "chunks", false, "show contributing chunk text")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := initEngine(ctx); err != nil {
		return err
	}
	if queryService == nil {
		return errors.New("query service not configured")
	}

	filters, err := parseFilters(matchFilters)
	if err != nil {
		return err
	}

	opts := domain.QueryOptions{
		K:       matchLimit,
		FanOut:  matchFanOut,
		Filters: filters,
	}
	if matchMean {
		opts.Aggregation = domain.AggregationMean
	}

	results, err := queryService.Query(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	if matchJSON {
		return outputMatchJSON(cmd, results)
	}
	return outputMatchTable(cmd, results)
}

func parseFilters(pairs []string) ([]domain.AttributeFilter, error) {
	attrs, err := parseAttrs(pairs)
	if err != nil {
		return nil, err
	}

	filters := make([]domain.AttributeFilter, 0, len(attrs))
	for key, value := range attrs {
		filters = append(filters, domain.AttributeFilter{Key: key, Value: value})
	}
	return filters, nil
}

func outputMatchJSON(cmd *cobra.Command, results []domain.RankedResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputMatchTable(cmd *cobra.Command, results []domain.RankedResult) error {
	if len(results) == 0 {
		cmd.Println("No matching resumes found.")
		return nil
	}

	cmd.Println("Matches:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, results[i].DocumentID, results[i].Score)
		if results[i].Path != "" {
			cmd.Printf("      Path: %s\n", results[i].Path)
		}
		for key, value := range results[i].Attributes {
			cmd.Printf("      %s: %s\n", key, value)
		}
		if matchChunks {
			for _, chunk := range results[i].Chunks {
				cmd.Printf("      chunk %d (%.4f): %s\n", chunk.Position, chunk.Score, chunk.Content)
			}
		}
		cmd.Println()
	}

	return nil
}
