package mcp

import (
	"github.com/custodia-labs/resumatch-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query ranks resumes against a job description.
	Query driving.QueryService

	// Ingest indexes resume text.
	Ingest driving.IngestService

	// Check validates index/metadata parity.
	Check driving.ConsistencyChecker
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// Ingest and Check are optional; their tools are skipped when absent.
	return nil
}
