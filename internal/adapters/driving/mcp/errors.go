// Package mcp provides an MCP (Model Context Protocol) server adapter
// for resumatch. It lets AI assistants rank and ingest resumes through
// the local engine.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
