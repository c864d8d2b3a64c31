// Package file loads and persists resumatch configuration as a TOML
// file, by default ~/.resumatch/config.toml.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

// Config is the full resumatch configuration.
type Config struct {
	// DataDir holds the index snapshot and metadata database.
	// Defaults to ~/.resumatch/data.
	DataDir string `toml:"data_dir"`

	Chunking  ChunkingConfig  `toml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Storage   StorageConfig   `toml:"storage"`
	Query     QueryConfig     `toml:"query"`
}

// ChunkingConfig controls how resume text is split.
type ChunkingConfig struct {
	// Size is the chunk size in characters.
	Size int `toml:"size"`

	// Overlap is the character overlap between consecutive chunks.
	Overlap int `toml:"overlap"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates against hosted providers. Can also be set
	// via OPENAI_API_KEY.
	APIKey string `toml:"api_key"`

	// Dimensions is the embedding vector size.
	Dimensions int `toml:"dimensions"`

	// RetryLimit is how many times a transient provider failure is
	// retried per chunk.
	RetryLimit int `toml:"retry_limit"`
}

// IndexConfig tunes the vector index.
type IndexConfig struct {
	// Metric is "cosine" or "l2".
	Metric string `toml:"metric"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string `toml:"backend"`

	// PostgresDSN is the connection string for the postgres backend.
	// Can also be set via RESUMATCH_PG_DSN.
	PostgresDSN string `toml:"postgres_dsn"`
}

// QueryConfig tunes ranking.
type QueryConfig struct {
	// FanOut is the candidate oversampling multiplier.
	FanOut int `toml:"fan_out"`

	// Aggregation is "best" (default) or "mean".
	Aggregation string `toml:"aggregation"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			Size:    512,
			Overlap: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			RetryLimit: 2,
		},
		Index: IndexConfig{
			Metric: "cosine",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Query: QueryConfig{
			FanOut:      domain.DefaultFanOut,
			Aggregation: string(domain.AggregationBest),
		},
	}
}

// DefaultPath returns ~/.resumatch/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".resumatch", "config.toml"), nil
}

// Load reads the configuration at path, filling unset fields with
// defaults. A missing file yields the defaults. An empty path uses
// DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path with restricted permissions,
// creating the parent directory if needed.
func Save(cfg Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	// The file may hold an API key.
	return os.WriteFile(path, data, 0600)
}

// applyEnv overlays secrets taken from the environment.
func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = key
	}
	if dsn := os.Getenv("RESUMATCH_PG_DSN"); dsn != "" && c.Storage.PostgresDSN == "" {
		c.Storage.PostgresDSN = dsn
	}
}

// Validate checks field combinations that would only fail deep inside
// the engine otherwise.
func (c Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive", domain.ErrInvalidArgument)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap*2 >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in [0, size/2)", domain.ErrInvalidArgument)
	}

	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidArgument, c.Embedding.Provider)
	}

	switch c.Index.Metric {
	case "cosine", "l2":
	default:
		return fmt.Errorf("%w: unknown index metric %q", domain.ErrInvalidArgument, c.Index.Metric)
	}

	switch c.Storage.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidArgument, c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: storage.postgres_dsn is required for the postgres backend", domain.ErrInvalidArgument)
	}

	if c.Query.FanOut <= 0 {
		return fmt.Errorf("%w: query.fan_out must be positive", domain.ErrInvalidArgument)
	}
	if !domain.Aggregation(c.Query.Aggregation).Valid() {
		return fmt.Errorf("%w: unknown aggregation %q", domain.ErrInvalidArgument, c.Query.Aggregation)
	}

	return nil
}
