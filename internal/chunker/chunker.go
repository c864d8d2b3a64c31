// Package chunker splits normalised resume text into overlapping spans
// sized for embedding quality and retrieval granularity.
package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 512

// DefaultOverlap is the default number of overlapping characters
// between consecutive chunks.
const DefaultOverlap = 50

// Span is one chunk of text with its byte offsets in the source.
type Span struct {
	// Text is the chunk content, trimmed of surrounding whitespace.
	Text string

	// Start and End delimit the untrimmed span in the source text.
	Start int
	End   int
}

// Chunker produces overlapping spans over a text. Chunk boundaries back
// off to the last sentence or word break past the window midpoint, so
// spans tend not to cut words in half.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a chunker. Overlap must be less than half the chunk
// size: boundary backoff can shrink a window to just past its
// midpoint, and the window must still advance past larger overlaps
// rather than re-emit near-identical spans. Violations return
// domain.ErrInvalidArgument.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidArgument, c.size)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", domain.ErrInvalidArgument, c.overlap)
	}
	if c.overlap*2 >= c.size {
		return nil, fmt.Errorf("%w: overlap %d must be less than half the chunk size %d",
			domain.ErrInvalidArgument, c.overlap, c.size)
	}

	return c, nil
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int {
	return c.size
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Scan returns a lazy scanner over the spans of text. The scanner is
// restartable: a fresh Scan call (or Reset) replays the same spans.
func (c *Chunker) Scan(text string) *Scanner {
	return &Scanner{chunker: c, text: text}
}

// Split returns all spans of text eagerly. Empty text yields zero
// spans; text shorter than one chunk yields exactly one.
func (c *Chunker) Split(text string) []Span {
	var spans []Span
	sc := c.Scan(text)
	for sc.Next() {
		spans = append(spans, sc.Span())
	}
	return spans
}

// Scanner iterates over chunk spans one at a time.
type Scanner struct {
	chunker *Chunker
	text    string
	pos     int
	span    Span
	done    bool
}

// Reset rewinds the scanner to the start of the text.
func (s *Scanner) Reset() {
	s.pos = 0
	s.span = Span{}
	s.done = false
}

// Span returns the current span. Valid after Next reports true.
func (s *Scanner) Span() Span {
	return s.span
}

// Next advances to the next span. It returns false when the text is
// exhausted.
func (s *Scanner) Next() bool {
	for !s.done {
		span, ok := s.advance()
		if !ok {
			return false
		}
		if span.Text != "" {
			s.span = span
			return true
		}
		// All-whitespace window: skip it and keep scanning.
	}
	return false
}

// advance computes the next raw window, applying boundary backoff.
func (s *Scanner) advance() (Span, bool) {
	if s.pos >= len(s.text) {
		s.done = true
		return Span{}, false
	}

	size := s.chunker.size
	overlap := s.chunker.overlap
	start := s.pos

	end := start + size
	if end >= len(s.text) {
		end = len(s.text)
		s.done = true
	} else {
		// Prefer a sentence break, then a word break, past the window
		// midpoint so backoff never degrades to tiny chunks.
		if p := strings.LastIndexByte(s.text[start:end], '.'); p >= 0 && start+p > start+size/2 {
			end = start + p + 1
		} else if p := strings.LastIndexByte(s.text[start:end], ' '); p >= 0 && start+p > start+size/2 {
			end = start + p
		}
	}

	if !s.done {
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		s.pos = next
	}

	return Span{Text: strings.TrimSpace(s.text[start:end]), Start: start, End: end}, true
}
