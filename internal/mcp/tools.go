package mcp

import "github.com/crawlbridge/crawlbridge/internal/kg"

// ScrapeURLsInput defines the input schema for the scrape_urls tool.
type ScrapeURLsInput struct {
	URLs          []string `json:"urls" jsonschema:"list of URLs to scrape"`
	MaxConcurrent int      `json:"max_concurrent,omitempty" jsonschema:"maximum parallel browser sessions, default 10"`
	ReturnRaw     bool     `json:"return_raw,omitempty" jsonschema:"return raw markdown instead of storing it"`
}

// URLOutcome reports the result for one URL of a scrape.
type URLOutcome struct {
	URL           string `json:"url" jsonschema:"the scraped URL"`
	Success       bool   `json:"success" jsonschema:"whether this URL was scraped"`
	ChunksStored  int    `json:"chunks_stored,omitempty" jsonschema:"number of chunks stored for this URL"`
	ContentLength int    `json:"content_length,omitempty" jsonschema:"markdown length in characters"`
	Markdown      string `json:"markdown,omitempty" jsonschema:"raw markdown, present only in raw mode"`
	Error         string `json:"error,omitempty" jsonschema:"failure reason for this URL"`
}

// ScrapeURLsOutput defines the output schema for the scrape_urls tool.
type ScrapeURLsOutput struct {
	Results           []URLOutcome `json:"results" jsonschema:"per-URL outcomes"`
	PagesCrawled      int          `json:"pages_crawled" jsonschema:"number of successfully crawled pages"`
	TotalChunks       int          `json:"total_chunks" jsonschema:"total chunks stored"`
	TotalCodeExamples int          `json:"total_code_examples" jsonschema:"total code examples stored"`
	SourcesUpdated    int          `json:"sources_updated" jsonschema:"number of source records updated"`
}

// SmartCrawlInput defines the input schema for the smart_crawl_url tool.
type SmartCrawlInput struct {
	URL           string   `json:"url" jsonschema:"URL to crawl: webpage, sitemap.xml, or .txt file"`
	MaxDepth      int      `json:"max_depth,omitempty" jsonschema:"recursion depth for webpages, default 3"`
	MaxConcurrent int      `json:"max_concurrent,omitempty" jsonschema:"maximum parallel browser sessions, default 10"`
	ReturnRaw     bool     `json:"return_raw,omitempty" jsonschema:"return raw markdown instead of storing it"`
	Queries       []string `json:"queries,omitempty" jsonschema:"RAG queries to run against the crawled content after storage"`
}

// SmartCrawlOutput defines the output schema for the smart_crawl_url tool.
type SmartCrawlOutput struct {
	URL                string                         `json:"url" jsonschema:"the crawled URL"`
	CrawlType          string                         `json:"crawl_type" jsonschema:"selected strategy: text_file, sitemap, or webpage"`
	PagesCrawled       int                            `json:"pages_crawled" jsonschema:"number of pages crawled"`
	ChunksStored       int                            `json:"chunks_stored" jsonschema:"total chunks stored"`
	CodeExamplesStored int                            `json:"code_examples_stored" jsonschema:"total code examples stored"`
	SourcesUpdated     int                            `json:"sources_updated" jsonschema:"number of source records updated"`
	URLsCrawled        []string                       `json:"urls_crawled" jsonschema:"sample of crawled URLs, capped at five"`
	Raw                map[string]string              `json:"raw,omitempty" jsonschema:"URL to markdown map, present only in raw mode"`
	QueryResults       map[string]map[string][]RAGHit `json:"query_results,omitempty" jsonschema:"URL to query to hits, present only when queries were given"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query         string `json:"query" jsonschema:"the web search query"`
	NumResults    int    `json:"num_results,omitempty" jsonschema:"how many search results to scrape, default 6"`
	MaxConcurrent int    `json:"max_concurrent,omitempty" jsonschema:"maximum parallel browser sessions, default 10"`
	ReturnRaw     bool   `json:"return_raw,omitempty" jsonschema:"return raw markdown instead of running RAG queries"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query string   `json:"query" jsonschema:"the executed query"`
	URLs  []string `json:"urls" jsonschema:"result URLs that were scraped"`
	Mode  string   `json:"mode" jsonschema:"raw_markdown or rag_query"`
	// One of the two maps is set depending on the mode.
	Raw          map[string]string   `json:"raw,omitempty" jsonschema:"URL to markdown map, present only in raw mode"`
	RAGResults   map[string][]RAGHit `json:"rag_results,omitempty" jsonschema:"URL to hits for the query against that URL's source"`
	URLsFound    int                 `json:"urls_found" jsonschema:"number of search results found"`
	URLsScraped  int                 `json:"urls_scraped" jsonschema:"number of URLs successfully scraped"`
	ProcessingMS int64               `json:"processing_ms" jsonschema:"total processing time in milliseconds"`
}

// SourcesInput defines the input schema for the get_available_sources
// tool (no parameters).
type SourcesInput struct{}

// SourceInfo describes one crawled source.
type SourceInfo struct {
	SourceID   string `json:"source_id" jsonschema:"source identifier, usually the domain"`
	Summary    string `json:"summary" jsonschema:"generated summary of the source"`
	TotalWords int    `json:"total_words" jsonschema:"total word count across the source's chunks"`
	CreatedAt  string `json:"created_at" jsonschema:"RFC 3339 creation time"`
	UpdatedAt  string `json:"updated_at" jsonschema:"RFC 3339 last update time"`
}

// SourcesOutput defines the output schema for the get_available_sources tool.
type SourcesOutput struct {
	Sources []SourceInfo `json:"sources" jsonschema:"all known sources"`
	Count   int          `json:"count" jsonschema:"number of sources"`
}

// RAGQueryInput defines the input schema for the perform_rag_query tool.
type RAGQueryInput struct {
	Query      string `json:"query" jsonschema:"the search query"`
	Source     string `json:"source,omitempty" jsonschema:"restrict results to one source id, e.g. docs.example.com"`
	MatchCount int    `json:"match_count,omitempty" jsonschema:"number of results, default 5, maximum 50"`
}

// RAGHit is one search result.
type RAGHit struct {
	ID          string         `json:"id" jsonschema:"chunk identifier"`
	URL         string         `json:"url" jsonschema:"URL the chunk came from"`
	ChunkNumber int            `json:"chunk_number" jsonschema:"chunk index within the URL"`
	Content     string         `json:"content" jsonschema:"chunk text"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"chunk metadata"`
	SourceID    string         `json:"source_id" jsonschema:"source the chunk belongs to"`
	Similarity  float64        `json:"similarity" jsonschema:"relevance score between 0 and 1"`
}

// RAGQueryOutput defines the output schema for the perform_rag_query and
// search_code_examples tools.
type RAGQueryOutput struct {
	Query        string   `json:"query" jsonschema:"the executed query"`
	Source       string   `json:"source,omitempty" jsonschema:"source filter that was applied"`
	SearchMode   string   `json:"search_mode" jsonschema:"hybrid or vector"`
	Reranked     bool     `json:"reranked" jsonschema:"whether results were reranked"`
	Degraded     []string `json:"degraded,omitempty" jsonschema:"backends that failed during a hybrid query"`
	Results      []RAGHit `json:"results" jsonschema:"search results"`
	Count        int      `json:"count" jsonschema:"number of results"`
	ProcessingMS int64    `json:"processing_ms" jsonschema:"query processing time in milliseconds"`
}

// CodeSearchInput defines the input schema for the search_code_examples tool.
type CodeSearchInput struct {
	Query      string `json:"query" jsonschema:"the code search query"`
	SourceID   string `json:"source_id,omitempty" jsonschema:"restrict results to one source id"`
	MatchCount int    `json:"match_count,omitempty" jsonschema:"number of results, default 5, maximum 50"`
}

// GraphQueryInput defines the input schema for the query_knowledge_graph tool.
type GraphQueryInput struct {
	Command string `json:"command" jsonschema:"command to run: repos, explore <repo>, classes [repo], class <name>, method <name> [class], or query <cypher>"`
}

// GraphQueryOutput defines the output schema for the query_knowledge_graph tool.
type GraphQueryOutput = kg.Result
