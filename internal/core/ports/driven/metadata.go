package driven

import (
	"context"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

// MetadataStore persists document records and per-chunk metadata, keyed
// identically to the VectorIndex so the two can be validated against
// each other. Backed by SQLite.
type MetadataStore interface {
	// SaveDocument stores or updates a document record. Chunk content is
	// not stored here; use PutChunk.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID. Returns domain.ErrNotFound
	// if absent.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document record and all its chunk
	// metadata.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all document records.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// PutChunk stores or updates one chunk's metadata record.
	PutChunk(ctx context.Context, chunk *domain.Chunk) error

	// GetChunk retrieves a chunk's metadata by chunk ID. Returns
	// domain.ErrNotFound if absent.
	GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error)

	// DeleteChunk removes one chunk's metadata record.
	DeleteChunk(ctx context.Context, chunkID string) error

	// DeleteByDocument removes all chunk metadata belonging to a
	// document and returns the removed chunk IDs so the caller can apply
	// the matching vector index deletions.
	DeleteByDocument(ctx context.Context, documentID string) ([]string, error)

	// ChunkIDs returns the set of chunk IDs with metadata records,
	// sorted ascending. Used by the consistency check.
	ChunkIDs(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}
