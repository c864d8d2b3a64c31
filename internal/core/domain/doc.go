// Package domain contains the core business entities for resume matching:
// documents, chunks, queries, ranked results and ingestion reports.
// It has no dependencies on adapters or infrastructure.
package domain
