// Package memory provides in-memory adapter implementations, used in
// tests and as a zero-setup fallback.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string]domain.Chunk

	// failPutChunk makes the next PutChunk calls fail; tests use it to
	// exercise rollback paths.
	failPutChunk error
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
	}
}

// FailPutChunk makes subsequent PutChunk calls return err until called
// with nil again.
func (s *MetadataStore) FailPutChunk(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPutChunk = err
}

// SaveDocument stores or updates a document record.
func (s *MetadataStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *MetadataStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// DeleteDocument removes a document record and all its chunk metadata.
func (s *MetadataStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	for chunkID, chunk := range s.chunks {
		if chunk.DocumentID == id {
			delete(s.chunks, chunkID)
		}
	}
	return nil
}

// ListDocuments returns all document records ordered by ID.
func (s *MetadataStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for id := range s.documents {
		docs = append(docs, s.documents[id])
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// PutChunk stores or updates one chunk metadata record.
func (s *MetadataStore) PutChunk(_ context.Context, chunk *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPutChunk != nil {
		return s.failPutChunk
	}
	s.chunks[chunk.ID] = *chunk
	return nil
}

// GetChunk retrieves a chunk metadata record by chunk ID.
func (s *MetadataStore) GetChunk(_ context.Context, chunkID string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// DeleteChunk removes one chunk metadata record.
func (s *MetadataStore) DeleteChunk(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, chunkID)
	return nil
}

// DeleteByDocument removes all chunk metadata belonging to a document
// and returns the removed chunk IDs sorted ascending.
func (s *MetadataStore) DeleteByDocument(_ context.Context, documentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for chunkID, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			removed = append(removed, chunkID)
			delete(s.chunks, chunkID)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// ChunkIDs returns all chunk IDs with metadata records, sorted ascending.
func (s *MetadataStore) ChunkIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases resources.
func (s *MetadataStore) Close() error {
	return nil
}
