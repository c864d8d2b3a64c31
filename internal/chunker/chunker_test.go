package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

// TestNew_Validation tests chunker configuration validation
func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"defaults", nil, false},
		{"custom size and overlap", []Option{WithChunkSize(100), WithOverlap(20)}, false},
		{"zero overlap", []Option{WithOverlap(0)}, false},
		{"zero size", []Option{WithChunkSize(0)}, true},
		{"negative size", []Option{WithChunkSize(-1)}, true},
		{"negative overlap", []Option{WithOverlap(-5)}, true},
		{"overlap at half size", []Option{WithChunkSize(50), WithOverlap(25)}, true},
		{"overlap equals size", []Option{WithChunkSize(50), WithOverlap(50)}, true},
		{"overlap exceeds size", []Option{WithChunkSize(50), WithOverlap(80)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				assert.Nil(t, c)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

// TestSplit_Empty tests that empty text yields zero chunks
func TestSplit_Empty(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

// TestSplit_Whitespace tests that all-whitespace text yields zero chunks
func TestSplit_Whitespace(t *testing.T) {
	c, err := New(WithChunkSize(10), WithOverlap(2))
	require.NoError(t, err)

	assert.Empty(t, c.Split("    \n\t   "))
}

// TestSplit_ShortText tests that text shorter than one chunk yields exactly one chunk
func TestSplit_ShortText(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	spans := c.Split("Python backend engineer")
	require.Len(t, spans, 1)
	assert.Equal(t, "Python backend engineer", spans[0].Text)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 23, spans[0].End)
}

// TestSplit_Coverage tests that spans cover the whole input without gaps
func TestSplit_Coverage(t *testing.T) {
	c, err := New(WithChunkSize(40), WithOverlap(10))
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 20) // 200 chars, no break chars
	spans := c.Split(text)
	require.NotEmpty(t, spans)

	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(text), spans[len(spans)-1].End)
	for i := 1; i < len(spans); i++ {
		// Consecutive windows overlap, so no byte is skipped.
		assert.LessOrEqual(t, spans[i].Start, spans[i-1].End,
			"gap between span %d and %d", i-1, i)
	}
}

// TestSplit_Overlap tests that consecutive chunks share the configured overlap
func TestSplit_Overlap(t *testing.T) {
	c, err := New(WithChunkSize(50), WithOverlap(10))
	require.NoError(t, err)

	text := strings.Repeat("x", 200)
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)

	for i := 1; i < len(spans); i++ {
		assert.Equal(t, spans[i-1].End-10, spans[i].Start)
	}
}

// TestSplit_SentenceBoundary tests backoff to sentence breaks
func TestSplit_SentenceBoundary(t *testing.T) {
	c, err := New(WithChunkSize(60), WithOverlap(0))
	require.NoError(t, err)

	text := "Five years of Python experience. Built data pipelines on AWS with Airflow and Spark."
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)

	// The first chunk should end at the sentence break, not mid-word.
	assert.Equal(t, "Five years of Python experience.", spans[0].Text)
}

// TestSplit_WordBoundary tests backoff to word breaks when no sentence break exists
func TestSplit_WordBoundary(t *testing.T) {
	c, err := New(WithChunkSize(30), WithOverlap(0))
	require.NoError(t, err)

	text := "golang kubernetes terraform ansible prometheus grafana"
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)

	// No chunk except possibly the last ends mid-word.
	for i := 0; i < len(spans)-1; i++ {
		assert.False(t, strings.HasSuffix(spans[i].Text, "terrafo"),
			"chunk %d cut a word: %q", i, spans[i].Text)
		if spans[i].End < len(text) {
			assert.NotEqual(t, byte(' '), text[spans[i].End-1])
		}
	}
}

// TestSplit_BackoffKeepsWindowAdvancing tests that boundary backoff at the
// maximum legal overlap never degrades to near-duplicate spans
func TestSplit_BackoffKeepsWindowAdvancing(t *testing.T) {
	c, err := New(WithChunkSize(8), WithOverlap(3))
	require.NoError(t, err)

	// Break-heavy text forces backoff close to the window midpoint on
	// every span.
	text := "aa bb cc dd ee ff gg hh ii jj"
	spans := c.Split(text)
	require.Greater(t, len(spans), 1)

	for i := 1; i < len(spans); i++ {
		assert.Greater(t, spans[i].Start, spans[i-1].Start+1,
			"span %d barely advanced past span %d", i, i-1)
	}
}

// TestScanner_Restartable tests that a reset scanner replays identical spans
func TestScanner_Restartable(t *testing.T) {
	c, err := New(WithChunkSize(40), WithOverlap(10))
	require.NoError(t, err)

	text := "Senior frontend developer. React, TypeScript, CSS. Led a team of four engineers."

	sc := c.Scan(text)
	var first []Span
	for sc.Next() {
		first = append(first, sc.Span())
	}

	sc.Reset()
	var second []Span
	for sc.Next() {
		second = append(second, sc.Span())
	}

	assert.Equal(t, first, second)
	assert.Equal(t, c.Split(text), first)
}

// TestScanner_Lazy tests that spans are produced one at a time
func TestScanner_Lazy(t *testing.T) {
	c, err := New(WithChunkSize(20), WithOverlap(5))
	require.NoError(t, err)

	sc := c.Scan(strings.Repeat("y", 100))
	require.True(t, sc.Next())
	firstSpan := sc.Span()
	assert.Equal(t, 0, firstSpan.Start)

	require.True(t, sc.Next())
	assert.Greater(t, sc.Span().Start, 0)
}
