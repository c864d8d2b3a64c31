package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed input: non-positive k,
	// overlap exceeding chunk size, bad filter syntax.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingFailure indicates the embedding provider failed after
	// retry exhaustion. Scoped to a single chunk or query, never fatal to
	// a whole batch.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrDimensionMismatch indicates a vector's length does not match the
	// dimensionality fixed at engine construction.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexCorruption indicates the vector index and metadata store
	// have diverged: a chunk ID present in one but not the other. It is
	// surfaced by the consistency check, never silently repaired.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrPersistenceFailure indicates an I/O error while persisting or
	// loading the index. The prior on-disk snapshot is left intact.
	ErrPersistenceFailure = errors.New("persistence failure")
)
