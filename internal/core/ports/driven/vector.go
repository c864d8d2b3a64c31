package driven

import "context"

// VectorIndex stores chunk embeddings and answers nearest-neighbour
// queries. The distance metric and dimensionality are fixed at
// construction.
//
// Determinism contract: Search with the same query vector against the
// same logical contents returns identically ordered results, including
// after Persist followed by Load in a new process. Ties on score are
// broken by ascending chunk ID.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID. Adding an existing
	// chunk ID replaces the stale vector; the index never holds two
	// entries for one logical chunk.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Delete removes a vector from the index. Deleting an absent chunk ID
	// is a no-op.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k nearest neighbours to the query vector, ordered
	// by descending similarity. Returns at most k hits; an empty index
	// yields an empty slice.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Has reports whether a vector is indexed under the given chunk ID.
	Has(ctx context.Context, chunkID string) (bool, error)

	// ChunkIDs returns the set of chunk IDs currently indexed, sorted
	// ascending. Used by the consistency check.
	ChunkIDs(ctx context.Context) ([]string, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Persist writes the index to its durable location atomically. A
	// failed persist leaves the prior snapshot intact.
	Persist(ctx context.Context) error

	// Load replaces the in-memory contents with the persisted snapshot.
	Load(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the similarity score; higher is better. For the
	// cosine metric this is in [-1, 1].
	Similarity float64
}
