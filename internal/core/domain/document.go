package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Document represents one candidate resume with pre-extracted text.
// Binary formats (PDF, DOCX) are parsed upstream; this core only ever
// sees plain text.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Path is the original location of the resume file.
	Path string

	// Content is the full normalised resume text.
	Content string

	// ContentHash is the SHA-256 hex digest of Content, used to detect
	// unchanged re-ingestion.
	ContentHash string

	// Attributes contains arbitrary key-value pairs attached at ingestion
	// (candidate name, file name, source system).
	Attributes map[string]string

	// IngestedAt is when the document was last successfully ingested.
	IngestedAt time.Time

	// ChunkCount is the number of chunks currently indexed for this
	// document. Zero is valid: a document with empty text is recorded as
	// ingested with no content.
	ChunkCount int
}

// Chunk is a contiguous span of a document's text, the unit that is
// embedded and indexed. Chunks are owned by their document and are
// replaced wholesale when the document is re-ingested.
type Chunk struct {
	// ID is the chunk identifier, deterministic per document:
	// "<documentID>#<sequence>". Determinism keeps search tie-breaks and
	// re-ingestion reproducible.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Content is the text span.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// StartOffset and EndOffset delimit the span in the document text,
	// in bytes.
	StartOffset int
	EndOffset   int

	// Embedding is the vector representation. May be nil on a chunk that
	// failed embedding and was skipped.
	Embedding []float32
}

// ChunkID builds the deterministic chunk identifier for a document and
// sequence number.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s#%04d", documentID, position)
}

// HashContent returns the SHA-256 hex digest of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
