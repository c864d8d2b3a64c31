// Package driving provides interfaces for external actors (primary/inbound ports).
package driving

import (
	"context"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

// IngestService accepts pre-extracted resume text and maintains the
// vector index and metadata store as one logical unit per document.
type IngestService interface {
	// Ingest chunks, embeds and indexes one document. Repeating the call
	// with unchanged content is a no-op; changed content supersedes all
	// prior chunks. Per-chunk embedding failures are collected in the
	// report, not raised.
	Ingest(ctx context.Context, doc domain.Document) (*domain.IngestReport, error)

	// Delete removes a document and all its chunks from both stores.
	Delete(ctx context.Context, documentID string) error

	// Persist flushes the vector index to its durable location.
	Persist(ctx context.Context) error
}

// QueryService ranks indexed resumes against a job description.
type QueryService interface {
	// Query embeds the text, retrieves an oversampled candidate chunk
	// set, aggregates per document and returns the top k ranked results.
	Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.RankedResult, error)
}

// ConsistencyChecker validates the parity invariant between the vector
// index and the metadata store.
type ConsistencyChecker interface {
	// Check compares chunk ID sets between both stores. A non-empty
	// report of orphans is returned together with domain.ErrIndexCorruption.
	Check(ctx context.Context) (*ParityReport, error)
}

// ParityReport lists chunk IDs present in one store but not the other.
type ParityReport struct {
	// VectorsWithoutMetadata are chunk IDs indexed but lacking metadata.
	VectorsWithoutMetadata []string

	// MetadataWithoutVectors are chunk IDs with metadata but no vector.
	MetadataWithoutVectors []string

	// VectorCount and MetadataCount are the store sizes at check time.
	VectorCount   int
	MetadataCount int

	// DocumentCount is the number of document records.
	DocumentCount int
}

// Consistent reports whether the two stores are in exact correspondence.
func (r *ParityReport) Consistent() bool {
	return len(r.VectorsWithoutMetadata) == 0 && len(r.MetadataWithoutVectors) == 0
}
