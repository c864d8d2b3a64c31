package cli

import (
	"context"
	"errors"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driving"
)

// mockEngine implements every driving port so tests can run commands
// without touching a real index or embedding provider.
type mockEngine struct {
	reports   map[string]*domain.IngestReport
	ingested  []domain.Document
	deleted   []string
	persisted int

	results  []domain.RankedResult
	lastOpts domain.QueryOptions

	parity *driving.ParityReport

	ingestErr error
	queryErr  error
	checkErr  error
}

func (m *mockEngine) Ingest(_ context.Context, doc domain.Document) (*domain.IngestReport, error) {
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	m.ingested = append(m.ingested, doc)
	if report, ok := m.reports[doc.ID]; ok {
		return report, nil
	}
	return &domain.IngestReport{
		DocumentID:    doc.ID,
		Status:        domain.IngestStatusIndexed,
		ChunksTotal:   1,
		ChunksIndexed: 1,
	}, nil
}

func (m *mockEngine) Delete(_ context.Context, documentID string) error {
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.deleted = append(m.deleted, documentID)
	return nil
}

func (m *mockEngine) Persist(_ context.Context) error {
	m.persisted++
	return nil
}

func (m *mockEngine) Query(_ context.Context, _ string, opts domain.QueryOptions) ([]domain.RankedResult, error) {
	m.lastOpts = opts
	return m.results, m.queryErr
}

func (m *mockEngine) Check(_ context.Context) (*driving.ParityReport, error) {
	if m.parity == nil {
		return nil, errors.New("no parity report configured")
	}
	return m.parity, m.checkErr
}

// setupTestServices installs a mock engine behind the commands and
// returns it with a cleanup function.
func setupTestServices() (*mockEngine, func()) {
	engine := &mockEngine{}

	oldIngest, oldQuery, oldCheck := ingestService, queryService, checkService
	ingestService = engine
	queryService = engine
	checkService = engine

	return engine, func() {
		ingestService = oldIngest
		queryService = oldQuery
		checkService = oldCheck
	}
}
