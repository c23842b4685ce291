// Package store persists crawled documents, code examples, and source
// records in Postgres with pgvector similarity search.
package store

import (
	"context"
	"time"

	"github.com/crawlbridge/crawlbridge/internal/search"
)

// Document is one chunk of a crawled page, ready to persist.
type Document struct {
	URL         string
	ChunkNumber int
	Content     string
	Metadata    map[string]any
	SourceID    string
}

// CodeExample is one extracted code block with its generated summary.
type CodeExample struct {
	URL         string
	ChunkNumber int
	Content     string
	Summary     string
	Metadata    map[string]any
	SourceID    string
}

// Source is an aggregate record per crawled domain.
type Source struct {
	SourceID   string    `json:"source_id"`
	Summary    string    `json:"summary"`
	TotalWords int       `json:"total_words"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentStore is the persistence boundary for crawled content.
type DocumentStore interface {
	// AddDocuments replaces all stored chunks for the documents' URLs
	// and inserts the new chunks in batches.
	AddDocuments(ctx context.Context, docs []Document) error

	// AddCodeExamples replaces stored code examples for the examples'
	// URLs and inserts the new ones in batches.
	AddCodeExamples(ctx context.Context, examples []CodeExample) error

	// UpsertSource creates or updates the aggregate record for a source.
	UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error

	// GetSources lists all known sources ordered by source id.
	GetSources(ctx context.Context) ([]Source, error)

	// SearchDocuments runs vector similarity search over crawled pages.
	SearchDocuments(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error)

	// SearchKeyword runs ILIKE substring search over crawled pages.
	SearchKeyword(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error)

	// SearchCodeExamples runs vector similarity search over code examples.
	SearchCodeExamples(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error)

	// SearchCodeExamplesKeyword runs ILIKE substring search over code
	// examples and their summaries.
	SearchCodeExamplesKeyword(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close()
}
