package mcp

import (
	"context"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results  []domain.RankedResult
	lastOpts domain.QueryOptions
	err      error
}

func (m *mockQueryService) Query(
	_ context.Context,
	_ string,
	opts domain.QueryOptions,
) ([]domain.RankedResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report    *domain.IngestReport
	lastDoc   domain.Document
	persisted int
	err       error
}

func (m *mockIngestService) Ingest(_ context.Context, doc domain.Document) (*domain.IngestReport, error) {
	m.lastDoc = doc
	return m.report, m.err
}

func (m *mockIngestService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestService) Persist(_ context.Context) error {
	m.persisted++
	return nil
}

// mockChecker is a mock implementation of driving.ConsistencyChecker.
type mockChecker struct {
	report *driving.ParityReport
	err    error
}

func (m *mockChecker) Check(_ context.Context) (*driving.ParityReport, error) {
	return m.report, m.err
}
