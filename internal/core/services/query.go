package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/logger"
)

// Query embeds the text, retrieves an oversampled candidate chunk set
// and returns the top k documents ranked by aggregate score.
//
// Candidates are fetched k * fanOut deep so a document whose relevance
// is spread over several chunks is not crowded out at the chunk level.
// Results are ordered by descending score; equal scores are broken by
// ascending document ID so repeated queries rank identically.
func (e *Engine) Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.RankedResult, error) {
	if opts.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, opts.K)
	}

	fanOut := e.fanOut
	if opts.FanOut > 0 {
		fanOut = opts.FanOut
	}

	aggregation := e.aggregation
	if opts.Aggregation != "" {
		if !opts.Aggregation.Valid() {
			return nil, fmt.Errorf("%w: unknown aggregation %q", domain.ErrInvalidArgument, opts.Aggregation)
		}
		aggregation = opts.Aggregation
	}

	logger.Section("Query")
	logger.Debug("embedding query (%d chars)", len(text))

	queryVec, err := e.embedWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}

	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	hits, err := e.index.Search(ctx, queryVec, opts.K*fanOut)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	logger.Debug("retrieved %d candidate chunks (k=%d, fan-out=%d)", len(hits), opts.K, fanOut)

	// Group candidate chunks per document, resolving metadata and
	// applying attribute filters along the way.
	docs := make(map[string]*domain.Document)
	grouped := make(map[string][]domain.ChunkMatch)
	for _, hit := range hits {
		chunk, err := e.metadata.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// A vector without metadata means the stores have
				// diverged; drop the hit and carry on.
				logger.Warn("chunk %s has a vector but no metadata, skipping", hit.ChunkID)
				continue
			}
			return nil, fmt.Errorf("resolving chunk %q: %w", hit.ChunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = e.metadata.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("chunk %s references unknown document %s, skipping", hit.ChunkID, chunk.DocumentID)
					continue
				}
				return nil, fmt.Errorf("resolving document %q: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		if !matchesFilters(doc.Attributes, opts.Filters) {
			continue
		}

		grouped[chunk.DocumentID] = append(grouped[chunk.DocumentID], domain.ChunkMatch{
			ChunkID:     chunk.ID,
			Content:     chunk.Content,
			Position:    chunk.Position,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
			Score:       hit.Similarity,
		})
	}

	results := make([]domain.RankedResult, 0, len(grouped))
	for docID, chunks := range grouped {
		sort.Slice(chunks, func(i, j int) bool {
			if chunks[i].Score != chunks[j].Score {
				return chunks[i].Score > chunks[j].Score
			}
			return chunks[i].ChunkID < chunks[j].ChunkID
		})

		doc := docs[docID]
		results = append(results, domain.RankedResult{
			DocumentID: docID,
			Path:       doc.Path,
			Attributes: doc.Attributes,
			Score:      aggregate(aggregation, chunks),
			Chunks:     chunks,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})

	if len(results) > opts.K {
		results = results[:opts.K]
	}

	logger.Info("ranked %d documents", len(results))
	return results, nil
}

func matchesFilters(attrs map[string]string, filters []domain.AttributeFilter) bool {
	for _, f := range filters {
		if !f.Matches(attrs) {
			return false
		}
	}
	return true
}

// aggregate folds per-chunk scores into one document score. chunks is
// sorted by descending score and never empty.
func aggregate(policy domain.Aggregation, chunks []domain.ChunkMatch) float64 {
	switch policy {
	case domain.AggregationMean:
		var sum float64
		for _, c := range chunks {
			sum += c.Score
		}
		return sum / float64(len(chunks))
	default:
		return chunks[0].Score
	}
}
