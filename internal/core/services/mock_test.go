package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/index/brute"
	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/resumatch-cli/internal/chunker"
)

const stubDimensions = 3

// stubEmbedder returns canned unit vectors per exact text, so chunk
// similarity scores in tests are chosen up front. Unmapped texts embed
// to a vector orthogonal to every mapped one.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	failures map[string][]error
	calls    map[string]int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		vectors:  make(map[string][]float32),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// vector maps text to a fixed embedding.
func (s *stubEmbedder) vector(text string, v []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[text] = v
}

// failNext queues errors returned by successive Embed calls for text
// before the mapped vector is served again.
func (s *stubEmbedder) failNext(text string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[text] = append(s.failures[text], errs...)
}

func (s *stubEmbedder) callCount(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[text]
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[text]++

	if queue := s.failures[text]; len(queue) > 0 {
		err := queue[0]
		s.failures[text] = queue[1:]
		return nil, err
	}

	if v, ok := s.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return stubDimensions }

func (s *stubEmbedder) ModelName() string { return "stub-embedder" }

func (s *stubEmbedder) Ping(_ context.Context) error { return nil }

func (s *stubEmbedder) Close() error { return nil }

// rig wires an engine over in-memory collaborators for tests.
type rig struct {
	engine   *Engine
	embedder *stubEmbedder
	store    *memory.MetadataStore
	index    *brute.Index
	path     string
}

// newRig builds a test engine. A nil chunker uses the defaults.
func newRig(t *testing.T, ck *chunker.Chunker, opts ...Option) *rig {
	t.Helper()

	if ck == nil {
		var err error
		ck, err = chunker.New()
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "index.bin")
	idx, err := brute.New(path, stubDimensions, brute.MetricCosine)
	require.NoError(t, err)

	store := memory.NewMetadataStore()
	embedder := newStubEmbedder()

	engine, err := NewEngine(store, idx, embedder, ck, opts...)
	require.NoError(t, err)

	return &rig{
		engine:   engine,
		embedder: embedder,
		store:    store,
		index:    idx,
		path:     path,
	}
}

// smallChunker yields multi-chunk documents from short test strings:
// size 12, no overlap.
func smallChunker(t *testing.T) *chunker.Chunker {
	t.Helper()
	ck, err := chunker.New(chunker.WithChunkSize(12), chunker.WithOverlap(0))
	require.NoError(t, err)
	return ck
}
