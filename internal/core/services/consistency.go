package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/resumatch-cli/internal/logger"
)

// Check compares the chunk ID sets of the vector index and the metadata
// store. When both sides agree the report is returned with a nil error;
// any orphan on either side yields the report together with an error
// wrapping domain.ErrIndexCorruption.
func (e *Engine) Check(ctx context.Context) (*driving.ParityReport, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	vectorIDs, err := e.index.ChunkIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexed chunks: %w", err)
	}

	metaIDs, err := e.metadata.ChunkIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chunk metadata: %w", err)
	}

	docs, err := e.metadata.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	report := &driving.ParityReport{
		VectorCount:   len(vectorIDs),
		MetadataCount: len(metaIDs),
		DocumentCount: len(docs),
	}

	metaSet := make(map[string]struct{}, len(metaIDs))
	for _, id := range metaIDs {
		metaSet[id] = struct{}{}
	}
	vectorSet := make(map[string]struct{}, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = struct{}{}
	}

	for _, id := range vectorIDs {
		if _, ok := metaSet[id]; !ok {
			report.VectorsWithoutMetadata = append(report.VectorsWithoutMetadata, id)
		}
	}
	for _, id := range metaIDs {
		if _, ok := vectorSet[id]; !ok {
			report.MetadataWithoutVectors = append(report.MetadataWithoutVectors, id)
		}
	}

	if !report.Consistent() {
		logger.Warn("parity check failed: %d vectors without metadata, %d metadata rows without vectors",
			len(report.VectorsWithoutMetadata), len(report.MetadataWithoutVectors))
		return report, fmt.Errorf("%w: %d vectors without metadata, %d metadata rows without vectors",
			domain.ErrIndexCorruption, len(report.VectorsWithoutMetadata), len(report.MetadataWithoutVectors))
	}

	logger.Debug("parity check passed: %d chunks across %d documents", report.VectorCount, report.DocumentCount)
	return report, nil
}
