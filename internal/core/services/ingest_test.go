package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/index/brute"
	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
)

func TestIngest_IndexesDocument(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	r.embedder.vector("python", []float32{1, 0, 0})

	report, err := r.engine.Ingest(ctx, domain.Document{
		ID:         "alice",
		Path:       "/resumes/alice.txt",
		Content:    "python",
		Attributes: map[string]string{"location": "nyc"},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", report.DocumentID)
	assert.Equal(t, domain.IngestStatusIndexed, report.Status)
	assert.Equal(t, 1, report.ChunksTotal)
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.False(t, report.Superseded)
	assert.False(t, report.Partial())

	doc, err := r.store.GetDocument(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.HashContent("python"), doc.ContentHash)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, "/resumes/alice.txt", doc.Path)
	assert.Equal(t, "nyc", doc.Attributes["location"])
	assert.False(t, doc.IngestedAt.IsZero())

	chunk, err := r.store.GetChunk(ctx, "alice#0000")
	require.NoError(t, err)
	assert.Equal(t, "python", chunk.Content)
	assert.Equal(t, 0, chunk.Position)

	assert.Equal(t, 1, r.index.Len())
}

func TestIngest_MultiChunkDocument(t *testing.T) {
	r := newRig(t, smallChunker(t))
	ctx := context.Background()

	// Splits at the word boundary into "python java" and "python".
	report, err := r.engine.Ingest(ctx, domain.Document{
		ID:      "bob",
		Content: "python java python",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.ChunksTotal)
	assert.Equal(t, 2, report.ChunksIndexed)

	ids, err := r.store.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob#0000", "bob#0001"}, ids)

	first, err := r.store.GetChunk(ctx, "bob#0000")
	require.NoError(t, err)
	assert.Equal(t, "python java", first.Content)
	assert.Equal(t, 0, first.Position)

	second, err := r.store.GetChunk(ctx, "bob#0001")
	require.NoError(t, err)
	assert.Equal(t, "python", second.Content)
	assert.Equal(t, 1, second.Position)
}

func TestIngest_EmptyDocument(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	report, err := r.engine.Ingest(ctx, domain.Document{ID: "blank", Content: "   \n\t  "})
	require.NoError(t, err)

	assert.Equal(t, domain.IngestStatusEmpty, report.Status)
	assert.Equal(t, 0, report.ChunksTotal)
	assert.Equal(t, 0, report.ChunksIndexed)

	doc, err := r.store.GetDocument(ctx, "blank")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Equal(t, 0, r.index.Len())
}

func TestIngest_MissingIDRejected(t *testing.T) {
	r := newRig(t, nil)

	_, err := r.engine.Ingest(context.Background(), domain.Document{Content: "python"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestIngest_UnchangedContentIsNoOp(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	doc := domain.Document{ID: "alice", Content: "python"}

	_, err := r.engine.Ingest(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, 1, r.embedder.callCount("python"))

	report, err := r.engine.Ingest(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestStatusUnchanged, report.Status)
	assert.Equal(t, 1, report.ChunksTotal)
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.False(t, report.Superseded)
	assert.Equal(t, 1, r.embedder.callCount("python"), "unchanged content must not be re-embedded")
	assert.Equal(t, 1, r.index.Len())
}

func TestIngest_ReindexesWhenVectorsLostBeforePersist(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	doc := domain.Document{ID: "alice", Content: "python"}
	_, err := r.engine.Ingest(ctx, doc)
	require.NoError(t, err)

	// Restart before any Persist: the reloaded index finds no snapshot,
	// while the metadata store kept the final content hash.
	reloaded, err := brute.New(r.path, stubDimensions, brute.MetricCosine)
	require.NoError(t, err)
	engine, err := NewEngine(r.store, reloaded, r.embedder, r.engine.chunks)
	require.NoError(t, err)
	require.NoError(t, engine.Load(ctx))
	require.Equal(t, 0, reloaded.Len())

	report, err := engine.Ingest(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestStatusIndexed, report.Status)
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.Equal(t, 1, reloaded.Len())

	_, err = engine.Check(ctx)
	assert.NoError(t, err, "re-ingest must restore index/metadata parity")
}

func TestIngest_ChangedContentSupersedes(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	_, err := r.engine.Ingest(ctx, domain.Document{ID: "alice", Content: "python"})
	require.NoError(t, err)

	report, err := r.engine.Ingest(ctx, domain.Document{ID: "alice", Content: "java"})
	require.NoError(t, err)

	assert.True(t, report.Superseded)
	assert.Equal(t, domain.IngestStatusIndexed, report.Status)

	// The old chunk set was fully replaced, not appended to.
	assert.Equal(t, 1, r.index.Len())
	chunk, err := r.store.GetChunk(ctx, "alice#0000")
	require.NoError(t, err)
	assert.Equal(t, "java", chunk.Content)

	doc, err := r.store.GetDocument(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.HashContent("java"), doc.ContentHash)
}

func TestIngest_TransientFailureIsRetried(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	r.embedder.failNext("python",
		driven.NewTransientEmbeddingError(errors.New("timeout")),
		driven.NewTransientEmbeddingError(errors.New("503")),
	)

	report, err := r.engine.Ingest(ctx, domain.Document{ID: "alice", Content: "python"})
	require.NoError(t, err)

	assert.False(t, report.Partial())
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.Equal(t, 3, r.embedder.callCount("python"))
}

func TestIngest_PermanentFailureNotRetried(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	r.embedder.failNext("python", driven.NewPermanentEmbeddingError(errors.New("bad request")))

	report, err := r.engine.Ingest(ctx, domain.Document{ID: "alice", Content: "python"})
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "alice#0000", report.Failures[0].ChunkID)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrEmbeddingFailure)
	assert.Equal(t, 0, report.ChunksIndexed)
	assert.Equal(t, 1, r.embedder.callCount("python"), "permanent failures must not be retried")

	// The stores stayed in lockstep despite the failure.
	parity, err := r.engine.Check(ctx)
	require.NoError(t, err)
	assert.True(t, parity.Consistent())
}

func TestIngest_PartialFailureRetriedOnReingest(t *testing.T) {
	r := newRig(t, smallChunker(t))
	ctx := context.Background()

	// First chunk embeds, second one exhausts its retries.
	r.embedder.failNext("python",
		driven.NewTransientEmbeddingError(errors.New("timeout")),
		driven.NewTransientEmbeddingError(errors.New("timeout")),
		driven.NewTransientEmbeddingError(errors.New("timeout")),
	)

	doc := domain.Document{ID: "bob", Content: "python java python"}

	report, err := r.engine.Ingest(ctx, doc)
	require.NoError(t, err)
	require.True(t, report.Partial())
	assert.Equal(t, 2, report.ChunksTotal)
	assert.Equal(t, 1, report.ChunksIndexed)
	assert.Equal(t, "bob#0001", report.Failures[0].ChunkID)

	// Re-running ingest with identical content must not short-circuit on
	// the hash while chunks are missing.
	report, err = r.engine.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusIndexed, report.Status)
	assert.False(t, report.Partial())
	assert.Equal(t, 2, report.ChunksIndexed)
	assert.Equal(t, 2, r.index.Len())
}

func TestIngest_MetadataFailureRollsBackVector(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()

	r.store.FailPutChunk(errors.New("disk full"))

	_, err := r.engine.Ingest(ctx, domain.Document{ID: "alice", Content: "python"})
	require.Error(t, err)

	// The vector insert preceding the failed metadata write was undone.
	assert.Equal(t, 0, r.index.Len())

	parity, err := r.engine.Check(ctx)
	require.NoError(t, err)
	assert.True(t, parity.Consistent())
}

func TestDelete_RemovesDocumentAndChunks(t *testing.T) {
	r := newRig(t, smallChunker(t))
	ctx := context.Background()

	_, err := r.engine.Ingest(ctx, domain.Document{ID: "bob", Content: "python java python"})
	require.NoError(t, err)
	require.Equal(t, 2, r.index.Len())

	require.NoError(t, r.engine.Delete(ctx, "bob"))

	_, err = r.store.GetDocument(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, r.index.Len())

	ids, err := r.store.ChunkIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDelete_UnknownDocument(t *testing.T) {
	r := newRig(t, nil)

	err := r.engine.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
