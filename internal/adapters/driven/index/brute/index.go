// Package brute provides an exact nearest-neighbour vector index with
// binary file persistence. Exhaustive scoring keeps rankings fully
// deterministic, which matters more than speed at resume-collection
// scale.
package brute

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Metric selects the distance function fixed at construction.
type Metric string

const (
	// MetricCosine scores by cosine similarity. Recommended: embedding
	// providers do not normalise magnitudes uniformly, and cosine removes
	// that confound.
	MetricCosine Metric = "cosine"

	// MetricL2 scores by negated Euclidean distance, so higher is still
	// better.
	MetricL2 Metric = "l2"
)

// snapshot file layout: magic, version, metric, dim, count, then per
// entry: idLen, id bytes, dim float32s. All integers little-endian.
// Entries are written sorted by chunk ID so identical contents always
// produce identical bytes.
var magic = [4]byte{'R', 'M', 'I', 'X'}

const snapshotVersion = 1

// Index is a brute-force in-memory vector index.
type Index struct {
	mu     sync.RWMutex
	path   string
	dim    int
	metric Metric

	ids   []string
	vecs  [][]float32
	mags  []float64
	slots map[string]int
}

// New creates an index persisted at path with the given dimensionality
// and metric.
func New(path string, dim int, metric Metric) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidArgument, dim)
	}
	switch metric {
	case MetricCosine, MetricL2:
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidArgument, metric)
	}

	return &Index{
		path:   path,
		dim:    dim,
		metric: metric,
		slots:  make(map[string]int),
	}, nil
}

// Dimensions returns the vector size fixed at construction.
func (idx *Index) Dimensions() int {
	return idx.dim
}

// Add inserts a vector for the given chunk ID, replacing any stale
// vector under the same ID.
func (idx *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != idx.dim {
		return fmt.Errorf("%w: got %d, index expects %d", domain.ErrDimensionMismatch, len(embedding), idx.dim)
	}

	vec := append([]float32(nil), embedding...)
	mag := magnitude(vec)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if slot, ok := idx.slots[chunkID]; ok {
		idx.vecs[slot] = vec
		idx.mags[slot] = mag
		return nil
	}

	idx.slots[chunkID] = len(idx.ids)
	idx.ids = append(idx.ids, chunkID)
	idx.vecs = append(idx.vecs, vec)
	idx.mags = append(idx.mags, mag)
	return nil
}

// Delete removes a vector from the index. Absent IDs are a no-op.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	slot, ok := idx.slots[chunkID]
	if !ok {
		return nil
	}

	last := len(idx.ids) - 1
	if slot != last {
		idx.ids[slot] = idx.ids[last]
		idx.vecs[slot] = idx.vecs[last]
		idx.mags[slot] = idx.mags[last]
		idx.slots[idx.ids[slot]] = slot
	}
	idx.ids = idx.ids[:last]
	idx.vecs = idx.vecs[:last]
	idx.mags = idx.mags[:last]
	delete(idx.slots, chunkID)
	return nil
}

// Search finds the k highest-scoring chunks for the query vector.
// Results are ordered by descending similarity, ties broken by
// ascending chunk ID.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", domain.ErrDimensionMismatch, len(query), idx.dim)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.ids) == 0 {
		return []driven.VectorHit{}, nil
	}

	qmag := magnitude(query)

	hits := make([]driven.VectorHit, 0, len(idx.ids))
	for i := range idx.vecs {
		score, ok := idx.score(query, qmag, i)
		if !ok {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: idx.ids[i], Similarity: score})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Similarity != hits[b].Similarity {
			return hits[a].Similarity > hits[b].Similarity
		}
		return hits[a].ChunkID < hits[b].ChunkID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// score computes the similarity between the query and slot i.
// Zero-magnitude vectors cannot be scored under cosine and are skipped.
func (idx *Index) score(query []float32, qmag float64, i int) (float64, bool) {
	switch idx.metric {
	case MetricL2:
		var sum float64
		for j := range query {
			d := float64(query[j]) - float64(idx.vecs[i][j])
			sum += d * d
		}
		return -math.Sqrt(sum), true
	default: // MetricCosine
		if qmag == 0 || idx.mags[i] == 0 {
			return 0, false
		}
		s := dot(query, idx.vecs[i]) / (qmag * idx.mags[i])
		if math.IsNaN(s) {
			return 0, false
		}
		return s, true
	}
}

// Has reports whether a vector is indexed under chunkID.
func (idx *Index) Has(_ context.Context, chunkID string) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, ok := idx.slots[chunkID]
	return ok, nil
}

// ChunkIDs returns all indexed chunk IDs sorted ascending.
func (idx *Index) ChunkIDs(_ context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := append([]string(nil), idx.ids...)
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Persist writes the index to disk atomically: a temp file in the same
// directory is renamed over the destination, so a failed write leaves
// the prior snapshot intact. Concurrent readers are not blocked;
// writers are.
func (idx *Index) Persist(_ context.Context) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	data := idx.encode()

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: creating index directory: %v", domain.ErrPersistenceFailure, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(idx.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", domain.ErrPersistenceFailure, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing snapshot: %v", domain.ErrPersistenceFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: syncing snapshot: %v", domain.ErrPersistenceFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing snapshot: %v", domain.ErrPersistenceFailure, err)
	}

	if err := os.Rename(tmpName, idx.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing snapshot: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// Load replaces in-memory contents with the persisted snapshot. A
// missing snapshot file leaves the index empty, which is the fresh
// install case, not an error.
func (idx *Index) Load(_ context.Context) error {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: reading snapshot: %v", domain.ErrPersistenceFailure, err)
	}

	ids, vecs, metric, dim, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if dim != idx.dim {
		return fmt.Errorf("%w: snapshot dimension %d, index expects %d", domain.ErrPersistenceFailure, dim, idx.dim)
	}
	if metric != idx.metric {
		return fmt.Errorf("%w: snapshot metric %q, index expects %q", domain.ErrPersistenceFailure, metric, idx.metric)
	}

	mags := make([]float64, len(vecs))
	slots := make(map[string]int, len(ids))
	for i := range ids {
		mags[i] = magnitude(vecs[i])
		slots[ids[i]] = i
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids = ids
	idx.vecs = vecs
	idx.mags = mags
	idx.slots = slots
	return nil
}

// Close releases resources. The in-memory index holds none beyond
// garbage-collected slices.
func (idx *Index) Close() error {
	return nil
}

// encode serialises the index. Caller must hold at least a read lock.
func (idx *Index) encode() []byte {
	order := append([]string(nil), idx.ids...)
	sort.Strings(order)

	size := len(magic) + 4 + 4 + 4 + 4
	for _, id := range order {
		size += 4 + len(id) + 4*idx.dim
	}

	out := make([]byte, 0, size)
	out = append(out, magic[:]...)
	out = appendU32(out, snapshotVersion)
	out = appendU32(out, metricCode(idx.metric))
	out = appendU32(out, uint32(idx.dim))
	out = appendU32(out, uint32(len(order)))

	for _, id := range order {
		out = appendU32(out, uint32(len(id)))
		out = append(out, id...)
		vec := idx.vecs[idx.slots[id]]
		for _, f := range vec {
			out = appendU32(out, math.Float32bits(f))
		}
	}
	return out
}

// decode parses a snapshot produced by encode.
func decode(data []byte) (ids []string, vecs [][]float32, metric Metric, dim int, err error) {
	header := len(magic) + 16
	if len(data) < header {
		return nil, nil, "", 0, fmt.Errorf("snapshot truncated: %d bytes", len(data))
	}
	if string(data[:4]) != string(magic[:]) {
		return nil, nil, "", 0, fmt.Errorf("unrecognised snapshot header")
	}

	off := 4
	version := readU32(data, &off)
	if version != snapshotVersion {
		return nil, nil, "", 0, fmt.Errorf("unsupported snapshot version %d", version)
	}
	metric, err = metricFromCode(readU32(data, &off))
	if err != nil {
		return nil, nil, "", 0, err
	}
	dim = int(readU32(data, &off))
	n := int(readU32(data, &off))

	ids = make([]string, 0, n)
	vecs = make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(data) {
			return nil, nil, "", 0, fmt.Errorf("snapshot truncated at entry %d", i)
		}
		idLen := int(readU32(data, &off))
		if off+idLen+4*dim > len(data) {
			return nil, nil, "", 0, fmt.Errorf("snapshot truncated at entry %d", i)
		}
		ids = append(ids, string(data[off:off+idLen]))
		off += idLen

		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(readU32(data, &off))
		}
		vecs = append(vecs, vec)
	}
	return ids, vecs, metric, dim, nil
}

func metricCode(m Metric) uint32 {
	if m == MetricL2 {
		return 1
	}
	return 0
}

func metricFromCode(code uint32) (Metric, error) {
	switch code {
	case 0:
		return MetricCosine, nil
	case 1:
		return MetricL2, nil
	default:
		return "", fmt.Errorf("unknown metric code %d", code)
	}
}

func appendU32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func readU32(data []byte, off *int) uint32 {
	v := binary.LittleEndian.Uint32(data[*off:])
	*off += 4
	return v
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
