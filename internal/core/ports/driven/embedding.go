// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"errors"
	"fmt"
)

// EmbeddingService generates vector embeddings from text. The
// dimensionality is fixed at construction and every returned vector has
// exactly Dimensions() elements.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Sentence-transformers models behind an HTTP inference server
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingError wraps a provider failure and classifies it as transient
// (worth retrying: timeout, 5xx, connection refused) or permanent
// (malformed input, dimension mismatch, 4xx).
type EmbeddingError struct {
	Err       error
	Transient bool
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	if e.Transient {
		return fmt.Sprintf("embedding (transient): %v", e.Err)
	}
	return fmt.Sprintf("embedding (permanent): %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// NewTransientEmbeddingError wraps err as a retryable provider failure.
func NewTransientEmbeddingError(err error) *EmbeddingError {
	return &EmbeddingError{Err: err, Transient: true}
}

// NewPermanentEmbeddingError wraps err as a non-retryable provider failure.
func NewPermanentEmbeddingError(err error) *EmbeddingError {
	return &EmbeddingError{Err: err, Transient: false}
}

// IsTransientEmbeddingError reports whether err is a retryable provider
// failure.
func IsTransientEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee) && ee.Transient
}
