package brute

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

func newTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	idx, err := New(filepath.Join(t.TempDir(), "vectors.idx"), dim, MetricCosine)
	require.NoError(t, err)
	return idx
}

// TestNew_Validation tests index construction validation
func TestNew_Validation(t *testing.T) {
	_, err := New("x.idx", 0, MetricCosine)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = New("x.idx", 3, Metric("hamming"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	idx, err := New("x.idx", 3, MetricL2)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Dimensions())
}

// TestAdd_DimensionMismatch tests rejection of wrong-sized vectors
func TestAdd_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	err := idx.Add(context.Background(), "c1", []float32{1, 0})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Len())
}

// TestAdd_Idempotent tests that re-adding a chunk ID replaces the stale vector
func TestAdd_Idempotent(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "c1", []float32{0, 1}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

// TestDelete tests vector removal including absent IDs
func TestDelete(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "c2", []float32{0, 1}))
	require.NoError(t, idx.Add(ctx, "c3", []float32{1, 1}))

	require.NoError(t, idx.Delete(ctx, "c2"))
	assert.Equal(t, 2, idx.Len())

	// Deleting an absent ID is a no-op.
	require.NoError(t, idx.Delete(ctx, "c2"))
	assert.Equal(t, 2, idx.Len())

	ids, err := idx.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, ids)
}

// TestHas tests membership probes including after deletion
func TestHas(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))

	ok, err := idx.Has(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.Has(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idx.Delete(ctx, "c1"))
	ok, err = idx.Has(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestSearch_Ordering tests descending similarity with chunk ID tie-breaks
func TestSearch_Ordering(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, "far", []float32{0, 1}))
	// Two identical vectors tie; ascending chunk ID decides the order.
	require.NoError(t, idx.Add(ctx, "tie-b", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "tie-a", []float32{1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "tie-a", hits[0].ChunkID)
	assert.Equal(t, "tie-b", hits[1].ChunkID)
	assert.Equal(t, "far", hits[2].ChunkID)
}

// TestSearch_KBounds tests k validation and truncation
func TestSearch_KBounds(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	_, err := idx.Search(ctx, []float32{1, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "c2", []float32{0.9, 0.1}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

// TestSearch_Empty tests that an empty index returns an empty slice
func TestSearch_Empty(t *testing.T) {
	idx := newTestIndex(t, 2)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// TestSearch_L2Metric tests negated Euclidean scoring
func TestSearch_L2Metric(t *testing.T) {
	ctx := context.Background()
	idx, err := New(filepath.Join(t.TempDir(), "l2.idx"), 2, MetricL2)
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, "near", []float32{1, 1}))
	require.NoError(t, idx.Add(ctx, "far", []float32{10, 10}))

	hits, err := idx.Search(ctx, []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ChunkID)
	assert.InDelta(t, 0.0, hits[0].Similarity, 1e-9)
	assert.Less(t, hits[1].Similarity, hits[0].Similarity)
}

// TestPersist_RoundTrip tests that a loaded index reproduces identical rankings
func TestPersist_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")

	idx, err := New(path, 3, MetricCosine)
	require.NoError(t, err)

	vectors := map[string][]float32{
		"doc-a#0000": {0.9, 0.1, 0.3},
		"doc-a#0001": {0.2, 0.8, 0.1},
		"doc-b#0000": {0.5, 0.5, 0.5},
		"doc-c#0000": {0.1, 0.2, 0.9},
	}
	for id, vec := range vectors {
		require.NoError(t, idx.Add(ctx, id, vec))
	}

	query := []float32{0.7, 0.2, 0.4}
	before, err := idx.Search(ctx, query, 4)
	require.NoError(t, err)

	require.NoError(t, idx.Persist(ctx))

	// Simulate a process restart with a fresh index instance.
	reloaded, err := New(path, 3, MetricCosine)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 4, reloaded.Len())

	after, err := reloaded.Search(ctx, query, 4)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestPersist_Deterministic tests byte-identical snapshots for identical contents
func TestPersist_Deterministic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	build := func(path string, order []string) *Index {
		idx, err := New(path, 2, MetricCosine)
		require.NoError(t, err)
		vecs := map[string][]float32{
			"c1": {1, 0},
			"c2": {0, 1},
			"c3": {1, 1},
		}
		for _, id := range order {
			require.NoError(t, idx.Add(ctx, id, vecs[id]))
		}
		return idx
	}

	a := build(filepath.Join(dir, "a.idx"), []string{"c1", "c2", "c3"})
	b := build(filepath.Join(dir, "b.idx"), []string{"c3", "c1", "c2"})

	assert.Equal(t, a.encode(), b.encode())
}

// TestLoad_Missing tests that a missing snapshot leaves an empty index
func TestLoad_Missing(t *testing.T) {
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Load(context.Background()))
	assert.Equal(t, 0, idx.Len())
}

// TestLoad_DimensionMismatch tests rejection of snapshots with a different dimension
func TestLoad_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.idx")

	idx, err := New(path, 2, MetricCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, "c1", []float32{1, 0}))
	require.NoError(t, idx.Persist(ctx))

	other, err := New(path, 3, MetricCosine)
	require.NoError(t, err)
	err = other.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
}

// TestLoad_Corrupt tests rejection of malformed snapshot data
func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.idx")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0600))

	idx, err := New(path, 2, MetricCosine)
	require.NoError(t, err)
	err = idx.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
}
