package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/logger"
)

// Ingest chunks, embeds and indexes one document.
//
// Unchanged content (by hash, with its vectors still present in the
// index) is a no-op. Changed content supersedes
// every prior chunk of the document before the new chunks become
// visible. Embedding failures are scoped to the chunk: failed chunks
// are recorded in the report and the rest of the document is indexed.
// A metadata write failure after a vector insert rolls the vector back
// so the two stores never diverge.
func (e *Engine) Ingest(ctx context.Context, doc domain.Document) (*domain.IngestReport, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document ID is required", domain.ErrInvalidArgument)
	}

	if doc.ContentHash == "" {
		doc.ContentHash = domain.HashContent(doc.Content)
	}

	unlock := e.lockDocument(doc.ID)
	defer unlock()

	report := &domain.IngestReport{DocumentID: doc.ID}

	existing, err := e.metadata.GetDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up document %q: %w", doc.ID, err)
	}

	if existing != nil && existing.ContentHash == doc.ContentHash {
		// The hash is committed to metadata before the index snapshot is
		// persisted, so a crash between the two leaves the hash claiming
		// chunks the reloaded index does not have. Skip only when the
		// vectors are really there.
		indexed, err := e.hasAllChunks(ctx, doc.ID, existing.ChunkCount)
		if err != nil {
			return nil, fmt.Errorf("verifying index for %q: %w", doc.ID, err)
		}
		if indexed {
			logger.Debug("document %s unchanged, skipping", doc.ID)
			report.Status = domain.IngestStatusUnchanged
			report.ChunksTotal = existing.ChunkCount
			report.ChunksIndexed = existing.ChunkCount
			return report, nil
		}
		logger.Warn("document %s unchanged but missing from index, re-ingesting", doc.ID)
	}

	spans := e.chunks.Split(doc.Content)
	report.ChunksTotal = len(spans)

	logger.Section("Ingest " + doc.ID)
	logger.Debug("chunked %s into %d spans", doc.ID, len(spans))

	// Embedding runs outside the state lock so slow providers do not
	// block queries.
	embedded := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		chunk := domain.Chunk{
			ID:          domain.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Content:     span.Text,
			Position:    i,
			StartOffset: span.Start,
			EndOffset:   span.End,
		}

		vec, err := e.embedWithRetry(ctx, span.Text)
		if err != nil {
			logger.Warn("embedding chunk %s failed: %v", chunk.ID, err)
			report.Failures = append(report.Failures, domain.ChunkFailure{ChunkID: chunk.ID, Err: err})
			continue
		}

		chunk.Embedding = vec
		embedded = append(embedded, chunk)
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if existing != nil {
		removed, err := e.metadata.DeleteByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("superseding document %q: %w", doc.ID, err)
		}
		for _, chunkID := range removed {
			if err := e.index.Delete(ctx, chunkID); err != nil {
				return nil, fmt.Errorf("removing stale vector %q: %w", chunkID, err)
			}
		}
		report.Superseded = true
		logger.Debug("superseded %d prior chunks of %s", len(removed), doc.ID)
	}

	// A provisional record goes in before the chunks so chunk rows always
	// reference an existing document. Its empty hash means an interrupted
	// ingest reruns in full next time.
	record := &domain.Document{
		ID:         doc.ID,
		Path:       doc.Path,
		Attributes: doc.Attributes,
		IngestedAt: time.Now().UTC(),
	}
	if err := e.metadata.SaveDocument(ctx, record); err != nil {
		return nil, fmt.Errorf("saving document %q: %w", doc.ID, err)
	}

	for _, chunk := range embedded {
		if err := e.index.Add(ctx, chunk.ID, chunk.Embedding); err != nil {
			return nil, fmt.Errorf("indexing chunk %q: %w", chunk.ID, err)
		}
		if err := e.metadata.PutChunk(ctx, &chunk); err != nil {
			// Undo the vector insert; a vector without metadata would be
			// silently dropped from every query.
			if delErr := e.index.Delete(ctx, chunk.ID); delErr != nil {
				return nil, fmt.Errorf("storing chunk %q metadata: %w (vector rollback also failed: %v)",
					chunk.ID, err, delErr)
			}
			return nil, fmt.Errorf("storing chunk %q metadata: %w", chunk.ID, err)
		}
		report.ChunksIndexed++
	}

	record.ContentHash = doc.ContentHash
	record.ChunkCount = report.ChunksIndexed
	if report.Partial() {
		// Keeping the hash empty forces the next ingest of the same
		// content to run again and retry the failed chunks.
		record.ContentHash = ""
	}
	if err := e.metadata.SaveDocument(ctx, record); err != nil {
		return nil, fmt.Errorf("saving document %q: %w", doc.ID, err)
	}

	if report.ChunksTotal == 0 {
		report.Status = domain.IngestStatusEmpty
	} else {
		report.Status = domain.IngestStatusIndexed
	}

	logger.Info("ingested %s: %d of %d chunks", doc.ID, report.ChunksIndexed, report.ChunksTotal)
	return report, nil
}

// hasAllChunks reports whether vectors for chunk positions 0..n-1 of
// the document are present in the index. Fully indexed documents have
// contiguous positions; partially indexed ones never store a hash, so
// the unchanged path does not reach here for them.
func (e *Engine) hasAllChunks(ctx context.Context, docID string, n int) (bool, error) {
	for i := 0; i < n; i++ {
		ok, err := e.index.Has(ctx, domain.ChunkID(docID, i))
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Delete removes a document and all its chunks from both stores.
// Returns domain.ErrNotFound if the document is not known.
func (e *Engine) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document ID is required", domain.ErrInvalidArgument)
	}

	unlock := e.lockDocument(documentID)
	defer unlock()

	if _, err := e.metadata.GetDocument(ctx, documentID); err != nil {
		return err
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	removed, err := e.metadata.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks of %q: %w", documentID, err)
	}
	for _, chunkID := range removed {
		if err := e.index.Delete(ctx, chunkID); err != nil {
			return fmt.Errorf("removing vector %q: %w", chunkID, err)
		}
	}

	if err := e.metadata.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting document %q: %w", documentID, err)
	}

	logger.Info("deleted %s and %d chunks", documentID, len(removed))
	return nil
}
