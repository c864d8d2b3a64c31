package domain

// DefaultFanOut is the oversampling multiplier applied to k when
// retrieving candidate chunks. A document's relevant content may be
// spread across several chunks, so retrieving exactly k chunks would
// under-represent such documents after aggregation.
const DefaultFanOut = 5

// Aggregation selects how per-chunk scores combine into one
// document-level score.
type Aggregation string

const (
	// AggregationBest scores a document by its single best chunk. A
	// strongly matching skills section should surface a candidate even
	// when the rest of the resume is irrelevant.
	AggregationBest Aggregation = "best"

	// AggregationMean scores a document by the mean of its retrieved
	// chunk scores.
	AggregationMean Aggregation = "mean"
)

// Valid reports whether the aggregation policy is known.
func (a Aggregation) Valid() bool {
	return a == AggregationBest || a == AggregationMean
}

// AttributeFilter restricts query results to documents whose attribute
// under Key equals Value. Multiple filters are conjunctive.
type AttributeFilter struct {
	Key   string
	Value string
}

// Matches reports whether the document attributes satisfy the filter.
func (f AttributeFilter) Matches(attrs map[string]string) bool {
	v, ok := attrs[f.Key]
	return ok && v == f.Value
}

// QueryOptions configures a match query.
type QueryOptions struct {
	// K is the maximum number of ranked documents to return. Must be
	// positive.
	K int

	// FanOut overrides DefaultFanOut when positive.
	FanOut int

	// Filters restricts results by document attributes before
	// aggregation.
	Filters []AttributeFilter

	// Aggregation overrides the engine's configured policy when set.
	Aggregation Aggregation
}

// ChunkMatch is one contributing chunk within a ranked result, retained
// for explainability.
type ChunkMatch struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Content is the chunk text.
	Content string

	// Position is the chunk's ordinal position within the document.
	Position int

	// StartOffset and EndOffset delimit the span in the document text.
	StartOffset int
	EndOffset   int

	// Score is the similarity of this chunk to the query (higher is
	// better).
	Score float64
}

// RankedResult is one document in a query's ranked output. It is
// computed per query and never persisted.
type RankedResult struct {
	// DocumentID identifies the resume.
	DocumentID string

	// Path is the resume's source path.
	Path string

	// Attributes are the document's metadata attributes.
	Attributes map[string]string

	// Score is the aggregate document score.
	Score float64

	// Chunks lists the contributing chunks ordered by descending score.
	Chunks []ChunkMatch
}
