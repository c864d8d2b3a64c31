package domain

// IngestStatus describes the outcome of ingesting one document.
type IngestStatus string

const (
	// IngestStatusIndexed means chunks were written to the index.
	IngestStatusIndexed IngestStatus = "indexed"

	// IngestStatusUnchanged means the content hash matched the stored
	// document and ingestion was skipped.
	IngestStatusUnchanged IngestStatus = "unchanged"

	// IngestStatusEmpty means the document text produced zero chunks and
	// was recorded as ingested with no content.
	IngestStatusEmpty IngestStatus = "empty"
)

// ChunkFailure records one chunk that could not be embedded and was
// skipped during ingestion.
type ChunkFailure struct {
	// ChunkID is the chunk that failed.
	ChunkID string

	// Err is the terminal error after retry exhaustion.
	Err error
}

// IngestReport summarises the ingestion of one document. Per-chunk
// failures are collected here rather than raised individually: one bad
// chunk never aborts the document, and one bad document never aborts a
// batch.
type IngestReport struct {
	// BatchID groups reports produced by one ingestion run.
	BatchID string

	// DocumentID identifies the document.
	DocumentID string

	// Status is the outcome for the document.
	Status IngestStatus

	// ChunksTotal is the number of chunks produced by the chunker.
	ChunksTotal int

	// ChunksIndexed is the number of chunks successfully embedded and
	// written to both stores.
	ChunksIndexed int

	// Superseded reports whether a prior version of the document was
	// removed before indexing.
	Superseded bool

	// Failures lists chunks skipped after embedding retry exhaustion.
	Failures []ChunkFailure
}

// Partial reports whether some chunks were skipped.
func (r IngestReport) Partial() bool {
	return len(r.Failures) > 0
}
