// Package sqlite implements the metadata store on SQLite. Chunk
// metadata is keyed identically to the vector index so the two can be
// validated against each other.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/resumatch-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MetadataStore = (*Store)(nil)

// Store is a SQLite-backed metadata store. SQLite provides the
// durability contract: a reopened store returns the same records the
// closed one held.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a metadata store at the specified data directory.
// If dataDir is empty, defaults to ~/.resumatch/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".resumatch", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// WAL mode lets queries read while an ingestion writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveDocument stores or updates a document record.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	attrsJSON, err := json.Marshal(doc.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, path, content_hash, attributes, ingested_at, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			content_hash = excluded.content_hash,
			attributes = excluded.attributes,
			ingested_at = excluded.ingested_at,
			chunk_count = excluded.chunk_count
	`, doc.ID, doc.Path, doc.ContentHash, string(attrsJSON), doc.IngestedAt.UTC(), doc.ChunkCount)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, content_hash, attributes, ingested_at, chunk_count
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// DeleteDocument removes a document record and all its chunk metadata.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListDocuments returns all document records ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, content_hash, attributes, ingested_at, chunk_count
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// PutChunk stores or updates one chunk metadata record.
func (s *Store) PutChunk(ctx context.Context, chunk *domain.Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset
	`, chunk.ID, chunk.DocumentID, chunk.Content, chunk.Position, chunk.StartOffset, chunk.EndOffset)

	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk metadata record by chunk ID.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, position, start_offset, end_offset
		FROM chunks WHERE id = ?
	`, chunkID)

	var chunk domain.Chunk
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Position, &chunk.StartOffset, &chunk.EndOffset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &chunk, nil
}

// DeleteChunk removes one chunk metadata record.
func (s *Store) DeleteChunk(ctx context.Context, chunkID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", chunkID); err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}
	return nil
}

// DeleteByDocument removes all chunk metadata belonging to a document
// in one transaction and returns the removed chunk IDs.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE document_id = ? ORDER BY id", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return nil, fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ids, nil
}

// ChunkIDs returns all chunk IDs with metadata records, sorted ascending.
func (s *Store) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// scanDocument scans one document row via the given scan function.
func scanDocument(scan func(...any) error) (*domain.Document, error) {
	var doc domain.Document
	var attrsJSON string
	var ingestedAt sql.NullTime

	if err := scan(&doc.ID, &doc.Path, &doc.ContentHash, &attrsJSON,
		&ingestedAt, &doc.ChunkCount); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attrsJSON), &doc.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshaling attributes: %w", err)
	}
	if ingestedAt.Valid {
		doc.IngestedAt = ingestedAt.Time
	}
	return &doc, nil
}
