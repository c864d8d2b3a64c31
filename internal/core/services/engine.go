// Package services contains the core ranking engine: ingestion,
// querying and consistency checking over a vector index and metadata
// store pair.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/resumatch-cli/internal/chunker"
	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driving"
)

// DefaultRetryLimit is the number of additional embedding attempts made
// after a transient provider failure.
const DefaultRetryLimit = 2

// Engine coordinates the vector index, metadata store and embedding
// provider as one unit. Queries see a document's chunk set entirely or
// not at all: the supersede-and-reinsert step of ingestion runs under
// an exclusive lock, everything else (chunking, embedding) runs
// outside it.
type Engine struct {
	metadata driven.MetadataStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	chunks   *chunker.Chunker

	retryLimit  int
	fanOut      int
	aggregation domain.Aggregation

	// stateMu guards the combined index+metadata state. Queries and
	// consistency checks take the read lock; the commit phase of
	// ingestion and deletion takes the write lock.
	stateMu sync.RWMutex

	// docMu guards docLocks. Per-document locks serialise concurrent
	// ingestion of the same document ID.
	docMu    sync.Mutex
	docLocks map[string]*sync.Mutex
}

// Compile-time interface checks.
var (
	_ driving.IngestService      = (*Engine)(nil)
	_ driving.QueryService       = (*Engine)(nil)
	_ driving.ConsistencyChecker = (*Engine)(nil)
)

// Option configures the engine.
type Option func(*Engine)

// WithRetryLimit sets how many times a transient embedding failure is
// retried before the chunk is recorded as failed.
func WithRetryLimit(n int) Option {
	return func(e *Engine) {
		e.retryLimit = n
	}
}

// WithFanOut sets the default oversampling multiplier for queries.
func WithFanOut(n int) Option {
	return func(e *Engine) {
		e.fanOut = n
	}
}

// WithAggregation sets the default document scoring policy.
func WithAggregation(a domain.Aggregation) Option {
	return func(e *Engine) {
		e.aggregation = a
	}
}

// NewEngine creates the engine. All four collaborators are required.
func NewEngine(
	metadata driven.MetadataStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	chunks *chunker.Chunker,
	opts ...Option,
) (*Engine, error) {
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", domain.ErrInvalidArgument)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index is required", domain.ErrInvalidArgument)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service is required", domain.ErrInvalidArgument)
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: chunker is required", domain.ErrInvalidArgument)
	}

	e := &Engine{
		metadata:    metadata,
		index:       index,
		embedder:    embedder,
		chunks:      chunks,
		retryLimit:  DefaultRetryLimit,
		fanOut:      domain.DefaultFanOut,
		aggregation: domain.AggregationBest,
		docLocks:    make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.retryLimit < 0 {
		return nil, fmt.Errorf("%w: retry limit must be non-negative, got %d", domain.ErrInvalidArgument, e.retryLimit)
	}
	if e.fanOut <= 0 {
		return nil, fmt.Errorf("%w: fan-out must be positive, got %d", domain.ErrInvalidArgument, e.fanOut)
	}
	if !e.aggregation.Valid() {
		return nil, fmt.Errorf("%w: unknown aggregation %q", domain.ErrInvalidArgument, e.aggregation)
	}

	return e, nil
}

// Load replaces the in-memory index with its persisted snapshot.
// Called once at startup before the engine serves queries.
func (e *Engine) Load(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.index.Load(ctx)
}

// Persist flushes the vector index to its durable location. The index
// snapshots under its own lock, so concurrent writers are excluded for
// the duration.
func (e *Engine) Persist(ctx context.Context) error {
	return e.index.Persist(ctx)
}

// Close releases the underlying stores.
func (e *Engine) Close() error {
	if err := e.index.Close(); err != nil {
		return err
	}
	return e.metadata.Close()
}

// lockDocument acquires the per-document mutex for id. The returned
// function releases it.
func (e *Engine) lockDocument(id string) func() {
	e.docMu.Lock()
	mu, ok := e.docLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.docLocks[id] = mu
	}
	e.docMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// embedWithRetry embeds one text, retrying transient provider failures
// up to the configured limit. Permanent failures and context
// cancellation stop the loop immediately. The terminal error wraps
// domain.ErrEmbeddingFailure; a provider vector of the wrong size is
// rejected with domain.ErrDimensionMismatch.
func (e *Engine) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retryLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		vec, err := e.embedder.Embed(ctx, text)
		if err == nil {
			if want := e.embedder.Dimensions(); len(vec) != want {
				return nil, fmt.Errorf("%w: provider returned %d dimensions, want %d",
					domain.ErrDimensionMismatch, len(vec), want)
			}
			return vec, nil
		}

		lastErr = err
		if !driven.IsTransientEmbeddingError(err) {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, lastErr)
}
