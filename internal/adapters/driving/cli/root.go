// Package cli provides the resumatch command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/index/brute"
	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/resumatch-cli/internal/chunker"
	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/resumatch-cli/internal/core/services"
	"github.com/custodia-labs/resumatch-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

// Persistent flags.
var (
	verbose    bool
	configPath string
	dataDir    string
)

// Services backing the commands. Wired by initEngine from
// configuration; tests inject mocks instead.
var (
	ingestService driving.IngestService
	queryService  driving.QueryService
	checkService  driving.ConsistencyChecker
)

var rootCmd = &cobra.Command{
	Use:   "resumatch",
	Short: "Semantic resume retrieval and ranking",
	Long: `resumatch indexes plain-text resumes and ranks them against a
job description using embedding similarity. Resumes are chunked,
embedded and stored in a local vector index; queries retrieve the
best-matching candidates with per-chunk score explanations.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.resumatch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.resumatch/data)")
}

// Execute runs the root command. The context cancels long-running
// commands such as watch.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// initEngine builds the engine from configuration. It is a no-op when
// services are already present.
func initEngine(ctx context.Context) error {
	if ingestService != nil && queryService != nil && checkService != nil {
		return nil
	}

	cfg, err := file.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfg.DataDir = filepath.Join(home, ".resumatch", "data")
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	ck, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return err
	}

	metadata, index, err := newStores(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}

	engine, err := services.NewEngine(metadata, index, embedder, ck,
		services.WithRetryLimit(cfg.Embedding.RetryLimit),
		services.WithFanOut(cfg.Query.FanOut),
		services.WithAggregation(domain.Aggregation(cfg.Query.Aggregation)),
	)
	if err != nil {
		return err
	}

	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	logger.Debug("engine ready: %s embeddings (%d dims), %s storage",
		embedder.ModelName(), embedder.Dimensions(), cfg.Storage.Backend)

	ingestService = engine
	queryService = engine
	checkService = engine
	return nil
}

func newEmbedder(cfg file.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	}
}

func newStores(cfg file.Config, dims int) (driven.MetadataStore, driven.VectorIndex, error) {
	if cfg.Storage.Backend == "postgres" {
		pg, err := pgvector.NewStore(cfg.Storage.PostgresDSN, dims, pgvector.Metric(cfg.Index.Metric))
		if err != nil {
			return nil, nil, err
		}
		return pg.Metadata(), pg, nil
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	index, err := brute.New(filepath.Join(cfg.DataDir, "index.bin"), dims, brute.Metric(cfg.Index.Metric))
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return store, index, nil
}
