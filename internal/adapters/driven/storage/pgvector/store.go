// Package pgvector backs the vector index and the metadata store with
// one PostgreSQL database using the pgvector extension. Unlike the
// default sqlite+snapshot pair, vectors here are durable on write, so
// Persist and Load are no-ops.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
)

// Ensure Store and its metadata view implement the storage interfaces.
var (
	_ driven.VectorIndex   = (*Store)(nil)
	_ driven.MetadataStore = metadataView{}
)

// Metric selects the pgvector distance operator.
type Metric string

const (
	// MetricCosine ranks by cosine similarity.
	MetricCosine Metric = "cosine"

	// MetricL2 ranks by negated Euclidean distance.
	MetricL2 Metric = "l2"
)

// Store is a PostgreSQL-backed vector index and metadata store.
type Store struct {
	db     *sql.DB
	dim    int
	metric Metric
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL DEFAULT '',
    attributes JSONB NOT NULL DEFAULT '{}',
    ingested_at TIMESTAMPTZ NOT NULL,
    chunk_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    position INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

CREATE TABLE IF NOT EXISTS chunk_vectors (
    chunk_id TEXT PRIMARY KEY,
    embedding vector(%d) NOT NULL
);
`

// NewStore connects to dsn and creates the schema if needed.
func NewStore(dsn string, dim int, metric Metric) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidArgument, dim)
	}
	if metric != MetricCosine && metric != MetricL2 {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidArgument, metric)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(schema, dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, dim: dim, metric: metric}, nil
}

// Add inserts or replaces a chunk vector.
func (s *Store) Add(ctx context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != s.dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrDimensionMismatch, len(embedding), s.dim)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk_vectors (chunk_id, embedding) VALUES ($1, $2)
		 ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		chunkID, pgv.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("inserting vector %q: %w", chunkID, err)
	}
	return nil
}

// Delete removes a chunk vector. Absent IDs are a no-op.
func (s *Store) Delete(ctx context.Context, chunkID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE chunk_id = $1`, chunkID)
	if err != nil {
		return fmt.Errorf("deleting vector %q: %w", chunkID, err)
	}
	return nil
}

// Search returns the k nearest chunks ordered by descending similarity,
// ties broken by ascending chunk ID.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}

	// <=> is cosine distance, <-> is L2 distance; both are converted to
	// a higher-is-better similarity to match the index contract.
	var stmt string
	switch s.metric {
	case MetricCosine:
		stmt = `SELECT chunk_id, 1 - (embedding <=> $1) AS similarity
		        FROM chunk_vectors ORDER BY similarity DESC, chunk_id ASC LIMIT $2`
	case MetricL2:
		stmt = `SELECT chunk_id, -(embedding <-> $1) AS similarity
		        FROM chunk_vectors ORDER BY similarity DESC, chunk_id ASC LIMIT $2`
	}

	rows, err := s.db.QueryContext(ctx, stmt, pgv.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var hit driven.VectorHit
		if err := rows.Scan(&hit.ChunkID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Has reports whether a vector is indexed under chunkID.
func (s *Store) Has(ctx context.Context, chunkID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chunk_vectors WHERE chunk_id = $1)`, chunkID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("probing vector %q: %w", chunkID, err)
	}
	return ok, nil
}

// ChunkIDs returns all indexed chunk IDs sorted ascending.
func (s *Store) ChunkIDs(ctx context.Context) ([]string, error) {
	return s.chunkIDs(ctx, `SELECT chunk_id FROM chunk_vectors ORDER BY chunk_id ASC`)
}

// Len returns the number of indexed vectors.
func (s *Store) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Persist is a no-op: every write is already durable.
func (s *Store) Persist(_ context.Context) error { return nil }

// Load is a no-op: the database is the source of truth.
func (s *Store) Load(_ context.Context) error { return nil }

// SaveDocument stores or updates a document record.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	attrs, err := json.Marshal(doc.Attributes)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, path, content_hash, attributes, ingested_at, chunk_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   path = EXCLUDED.path,
		   content_hash = EXCLUDED.content_hash,
		   attributes = EXCLUDED.attributes,
		   ingested_at = EXCLUDED.ingested_at,
		   chunk_count = EXCLUDED.chunk_count`,
		doc.ID, doc.Path, doc.ContentHash, attrs, doc.IngestedAt, doc.ChunkCount)
	if err != nil {
		return fmt.Errorf("saving document %q: %w", doc.ID, err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, content_hash, attributes, ingested_at, chunk_count
		 FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", id, domain.ErrNotFound)
	}
	return doc, err
}

// DeleteDocument removes a document record. Chunk metadata goes with it
// via the cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	return nil
}

// ListDocuments returns all document records ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, content_hash, attributes, ingested_at, chunk_count
		 FROM documents ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// PutChunk stores or updates one chunk's metadata record.
func (s *Store) PutChunk(ctx context.Context, chunk *domain.Chunk) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   document_id = EXCLUDED.document_id,
		   content = EXCLUDED.content,
		   position = EXCLUDED.position,
		   start_offset = EXCLUDED.start_offset,
		   end_offset = EXCLUDED.end_offset`,
		chunk.ID, chunk.DocumentID, chunk.Content, chunk.Position, chunk.StartOffset, chunk.EndOffset)
	if err != nil {
		return fmt.Errorf("saving chunk %q: %w", chunk.ID, err)
	}
	return nil
}

// GetChunk retrieves a chunk's metadata by chunk ID.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, content, position, start_offset, end_offset
		 FROM chunks WHERE id = $1`, chunkID).
		Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position, &chunk.StartOffset, &chunk.EndOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %q: %w", chunkID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading chunk %q: %w", chunkID, err)
	}
	return &chunk, nil
}

// DeleteChunk removes one chunk's metadata record.
func (s *Store) DeleteChunk(ctx context.Context, chunkID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = $1`, chunkID)
	if err != nil {
		return fmt.Errorf("deleting chunk %q: %w", chunkID, err)
	}
	return nil
}

// DeleteByDocument removes all chunk metadata for a document and
// returns the removed chunk IDs.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM chunks WHERE document_id = $1 RETURNING id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("deleting chunks of %q: %w", documentID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Metadata returns the MetadataStore view of the store. Its ChunkIDs
// lists chunk metadata rows, where the Store's own ChunkIDs lists
// vectors; the consistency check compares the two.
func (s *Store) Metadata() driven.MetadataStore {
	return metadataView{s}
}

type metadataView struct {
	*Store
}

func (v metadataView) ChunkIDs(ctx context.Context) ([]string, error) {
	return v.chunkIDs(ctx, `SELECT id FROM chunks ORDER BY id ASC`)
}

func (s *Store) chunkIDs(ctx context.Context, stmt string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("listing chunk IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database connection. The Store serves as both the
// vector index and the metadata store, so the engine's two Close calls
// both land here; closing twice is safe.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var (
		doc   domain.Document
		attrs []byte
	)
	if err := scan(&doc.ID, &doc.Path, &doc.ContentHash, &attrs, &doc.IngestedAt, &doc.ChunkCount); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &doc.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes: %w", err)
		}
	}
	return &doc, nil
}
