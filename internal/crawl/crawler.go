// Package crawl fetches web content through an external crawler service
// and orchestrates chunking, storage, and follow-up RAG queries.
package crawl

import (
	"context"
)

// Page is the outcome of crawling one URL. Failures surface as
// Success=false with Error set, never as a Go error, so batch crawls
// can report mixed results.
type Page struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	// Links are internal links discovered on the page, used by
	// recursive crawls.
	Links   []string `json:"links,omitempty"`
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
}

// Crawler fetches pages and converts them to markdown.
type Crawler interface {
	// CrawlOne fetches a single URL.
	CrawlOne(ctx context.Context, url string) Page

	// CrawlMany fetches URLs in parallel, at most maxConcurrent at a
	// time. The result has one Page per input URL, in input order.
	CrawlMany(ctx context.Context, urls []string, maxConcurrent int) []Page
}
