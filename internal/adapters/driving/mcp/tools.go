package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/resumatch-cli/internal/core/domain"
)

// MatchInput is the input schema for the match tool.
type MatchInput struct {
	Description string            `json:"description" jsonschema:"the job description to rank resumes against"`
	Limit       int               `json:"limit,omitempty" jsonschema:"maximum number of candidates to return (default 10)"`
	Filters     map[string]string `json:"filters,omitempty" jsonschema:"attribute filters; every key=value must match"`
	Mean        bool              `json:"mean,omitempty" jsonschema:"score by mean chunk similarity instead of best chunk"`
}

// MatchOutput is the output schema for the match tool.
type MatchOutput struct {
	Candidates []CandidateOutput `json:"candidates"`
	Count      int               `json:"count"`
}

// CandidateOutput represents a single ranked resume.
type CandidateOutput struct {
	DocumentID string            `json:"document_id"`
	Path       string            `json:"path,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Score      float64           `json:"score"`
	Chunks     []ChunkOutput     `json:"chunks,omitempty"`
}

// ChunkOutput is one contributing chunk of a ranked resume.
type ChunkOutput struct {
	ChunkID  string  `json:"chunk_id"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

// IngestInput is the input schema for the ingest_resume tool.
type IngestInput struct {
	DocumentID string            `json:"document_id" jsonschema:"stable identifier for the resume"`
	Content    string            `json:"content" jsonschema:"the plain resume text to index"`
	Attributes map[string]string `json:"attributes,omitempty" jsonschema:"filterable metadata such as location or seniority"`
}

// IngestOutput is the output schema for the ingest_resume tool.
type IngestOutput struct {
	DocumentID    string `json:"document_id"`
	Status        string `json:"status"`
	ChunksTotal   int    `json:"chunks_total"`
	ChunksIndexed int    `json:"chunks_indexed"`
	Superseded    bool   `json:"superseded"`
	FailedChunks  int    `json:"failed_chunks,omitempty"`
}

// CheckOutput is the output schema for the check_index tool.
type CheckOutput struct {
	Consistent             bool     `json:"consistent"`
	DocumentCount          int      `json:"document_count"`
	VectorCount            int      `json:"vector_count"`
	MetadataCount          int      `json:"metadata_count"`
	VectorsWithoutMetadata []string `json:"vectors_without_metadata,omitempty"`
	MetadataWithoutVectors []string `json:"metadata_without_vectors,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "match",
		Description: "Rank indexed resumes against a job description",
	}, s.handleMatch)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_resume",
			Description: "Chunk, embed and index one resume's text",
		}, s.handleIngest)
	}

	if s.ports.Check != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "check_index",
			Description: "Verify that the vector index and resume metadata are consistent",
		}, s.handleCheck)
	}
}

// handleMatch handles the match tool invocation.
func (s *Server) handleMatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MatchInput,
) (*mcp.CallToolResult, MatchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.QueryOptions{K: limit}
	for key, value := range input.Filters {
		opts.Filters = append(opts.Filters, domain.AttributeFilter{Key: key, Value: value})
	}
	if input.Mean {
		opts.Aggregation = domain.AggregationMean
	}

	results, err := s.ports.Query.Query(ctx, input.Description, opts)
	if err != nil {
		return nil, MatchOutput{}, err
	}

	output := MatchOutput{
		Candidates: make([]CandidateOutput, len(results)),
		Count:      len(results),
	}

	for i := range results {
		chunks := make([]ChunkOutput, len(results[i].Chunks))
		for j, chunk := range results[i].Chunks {
			chunks[j] = ChunkOutput{
				ChunkID:  chunk.ChunkID,
				Position: chunk.Position,
				Score:    chunk.Score,
				Content:  chunk.Content,
			}
		}
		output.Candidates[i] = CandidateOutput{
			DocumentID: results[i].DocumentID,
			Path:       results[i].Path,
			Attributes: results[i].Attributes,
			Score:      results[i].Score,
			Chunks:     chunks,
		}
	}

	return nil, output, nil
}

// handleIngest handles the ingest_resume tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	report, err := s.ports.Ingest.Ingest(ctx, domain.Document{
		ID:         input.DocumentID,
		Content:    input.Content,
		Attributes: input.Attributes,
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}

	if err := s.ports.Ingest.Persist(ctx); err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		DocumentID:    report.DocumentID,
		Status:        string(report.Status),
		ChunksTotal:   report.ChunksTotal,
		ChunksIndexed: report.ChunksIndexed,
		Superseded:    report.Superseded,
		FailedChunks:  len(report.Failures),
	}, nil
}

// handleCheck handles the check_index tool invocation. Corruption is
// reported in the output rather than as a tool error.
func (s *Server) handleCheck(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, CheckOutput, error) {
	report, err := s.ports.Check.Check(ctx)
	if report == nil && err != nil {
		return nil, CheckOutput{}, err
	}

	return nil, CheckOutput{
		Consistent:             report.Consistent(),
		DocumentCount:          report.DocumentCount,
		VectorCount:            report.VectorCount,
		MetadataCount:          report.MetadataCount,
		VectorsWithoutMetadata: report.VectorsWithoutMetadata,
		MetadataWithoutVectors: report.MetadataWithoutVectors,
	}, nil
}
