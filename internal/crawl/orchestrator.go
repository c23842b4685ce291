package crawl

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/crawlbridge/crawlbridge/internal/chunk"
	"github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/internal/search"
	"github.com/crawlbridge/crawlbridge/internal/store"
)

// DefaultRAGWorkers bounds concurrent follow-up RAG queries.
const DefaultRAGWorkers = 5

// DefaultSearchResults is how many web search results a
// search-and-scrape run requests when the caller does not say.
const DefaultSearchResults = 6

// CrawlType tags which strategy a smart crawl selected.
const (
	CrawlTypeTextFile = "text_file"
	CrawlTypeSitemap  = "sitemap"
	CrawlTypeWebpage  = "webpage"
)

// WebSearcher finds result URLs for a query on a metasearch instance.
type WebSearcher interface {
	Search(ctx context.Context, query string, numResults int) ([]string, error)
}

// Options configures an Orchestrator.
type Options struct {
	// ChunkSize is the maximum characters per stored chunk.
	ChunkSize int
	// ExtractCodeExamples enables code block extraction and storage.
	ExtractCodeExamples bool
	// HybridSearch is forwarded to follow-up RAG queries.
	HybridSearch bool
	// RAGWorkers bounds concurrent follow-up RAG queries.
	RAGWorkers int
	// WebSearcher enables the search-and-scrape workflow. Nil leaves
	// it disabled.
	WebSearcher WebSearcher
}

// Orchestrator ties the crawler, the chunker, the document store, and
// the query engine into the two crawl workflows: plain scraping and
// type-aware smart crawling.
type Orchestrator struct {
	crawler    Crawler
	docs       store.DocumentStore
	engine     *search.Engine
	summarizer Summarizer
	httpClient *http.Client
	logger     *slog.Logger
	opts       Options
}

// NewOrchestrator creates a crawl orchestrator. The engine may be nil
// if follow-up queries are not needed.
func NewOrchestrator(crawler Crawler, docs store.DocumentStore, engine *search.Engine, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultMaxChunkSize
	}
	if opts.RAGWorkers <= 0 {
		opts.RAGWorkers = DefaultRAGWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		crawler:    crawler,
		docs:       docs,
		engine:     engine,
		summarizer: HeuristicSummarizer{},
		httpClient: http.DefaultClient,
		logger:     logger,
		opts:       opts,
	}
}

// URLResult reports the outcome for one URL of a scrape.
type URLResult struct {
	URL           string `json:"url"`
	Success       bool   `json:"success"`
	ChunksStored  int    `json:"chunks_stored,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
	Markdown      string `json:"markdown,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ScrapeResult is the outcome of a batch scrape. Partial success is
// reported per URL, never collapsed into a single boolean.
type ScrapeResult struct {
	Results           []URLResult `json:"results"`
	PagesCrawled      int         `json:"pages_crawled"`
	TotalChunks       int         `json:"total_chunks"`
	TotalCodeExamples int         `json:"total_code_examples"`
	SourcesUpdated    int         `json:"sources_updated"`
}

// ScrapeURLs crawls the given URLs in parallel and stores their
// content. With returnRaw set, markdown is returned instead of stored.
// Input URLs are trimmed and deduplicated before crawling; a duplicate
// URL would otherwise produce chunks colliding on (url, chunk_number).
func (o *Orchestrator) ScrapeURLs(ctx context.Context, urls []string, maxConcurrent int, returnRaw bool) (*ScrapeResult, error) {
	urls = normalizeURLs(urls)
	if len(urls) == 0 {
		return nil, errors.Validation("no URLs provided")
	}

	pages := o.crawler.CrawlMany(ctx, urls, maxConcurrent)

	res := &ScrapeResult{Results: make([]URLResult, 0, len(pages))}

	var succeeded []Page
	for _, p := range pages {
		if !p.Success {
			res.Results = append(res.Results, URLResult{URL: p.URL, Error: p.Error})
			continue
		}
		succeeded = append(succeeded, p)
	}
	res.PagesCrawled = len(succeeded)

	if returnRaw {
		for _, p := range succeeded {
			res.Results = append(res.Results, URLResult{
				URL:           p.URL,
				Success:       true,
				ContentLength: len(p.Markdown),
				Markdown:      p.Markdown,
			})
		}
		return res, nil
	}

	stored, err := o.storePages(ctx, succeeded, CrawlTypeWebpage)
	if err != nil {
		return nil, err
	}
	res.TotalChunks = stored.chunks
	res.TotalCodeExamples = stored.codeExamples
	res.SourcesUpdated = stored.sources

	for _, p := range succeeded {
		res.Results = append(res.Results, URLResult{
			URL:           p.URL,
			Success:       true,
			ChunksStored:  stored.chunksByURL[p.URL],
			ContentLength: len(p.Markdown),
		})
	}

	return res, nil
}

// SmartCrawlRequest parametrizes a smart crawl.
type SmartCrawlRequest struct {
	URL           string
	MaxDepth      int
	MaxConcurrent int
	ReturnRaw     bool
	// Queries, when set, runs RAG queries against the crawled content
	// after storage and returns their results.
	Queries []string
}

// SmartCrawlResult is the outcome of a smart crawl.
type SmartCrawlResult struct {
	URL                string                    `json:"url"`
	CrawlType          string                    `json:"crawl_type"`
	PagesCrawled       int                       `json:"pages_crawled"`
	ChunksStored       int                       `json:"chunks_stored"`
	CodeExamplesStored int                       `json:"code_examples_stored"`
	SourcesUpdated     int                       `json:"sources_updated"`
	URLsCrawled        []string                  `json:"urls_crawled"`
	// Raw maps URL to markdown in raw mode.
	Raw map[string]string `json:"raw,omitempty"`
	// QueryResults maps URL to query to hits in query mode.
	QueryResults map[string]map[string][]search.SearchHit `json:"query_results,omitempty"`
}

// SmartCrawl picks a strategy from the URL's type: text files are
// fetched directly, sitemaps fan out to a parallel batch crawl, and
// regular pages are crawled recursively through internal links.
func (o *Orchestrator) SmartCrawl(ctx context.Context, req SmartCrawlRequest) (*SmartCrawlResult, error) {
	if req.URL == "" {
		return nil, errors.ValidationCode(errors.ErrCodeInvalidURL, "url cannot be empty")
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = 3
	}
	if req.MaxConcurrent <= 0 {
		req.MaxConcurrent = DefaultMaxConcurrent
	}

	var (
		pages     []Page
		crawlType string
	)
	switch {
	case IsTxt(req.URL):
		crawlType = CrawlTypeTextFile
		if p := o.crawler.CrawlOne(ctx, req.URL); p.Success {
			pages = []Page{p}
		}
	case IsSitemap(req.URL):
		crawlType = CrawlTypeSitemap
		urls, err := ParseSitemap(ctx, o.httpClient, req.URL)
		if err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			return nil, errors.New(errors.ErrCodeSitemapFetch, "no URLs found in sitemap", nil)
		}
		pages = onlySuccessful(o.crawler.CrawlMany(ctx, urls, req.MaxConcurrent))
	default:
		crawlType = CrawlTypeWebpage
		pages = CrawlRecursive(ctx, o.crawler, []string{req.URL}, req.MaxDepth, req.MaxConcurrent)
	}

	if len(pages) == 0 {
		return nil, errors.ExternalService(errors.ErrCodeCrawlerUnavailable, "no content found", nil)
	}

	res := &SmartCrawlResult{
		URL:          req.URL,
		CrawlType:    crawlType,
		PagesCrawled: len(pages),
		URLsCrawled:  crawledURLs(pages),
	}

	if req.ReturnRaw {
		res.Raw = make(map[string]string, len(pages))
		for _, p := range pages {
			res.Raw[p.URL] = p.Markdown
		}
		return res, nil
	}

	stored, err := o.storePages(ctx, pages, crawlType)
	if err != nil {
		return nil, err
	}
	res.ChunksStored = stored.chunks
	res.CodeExamplesStored = stored.codeExamples
	res.SourcesUpdated = stored.sources

	if len(req.Queries) > 0 {
		res.QueryResults = o.runRAGQueries(ctx, pages, req.Queries)
	}

	return res, nil
}

// SearchScrapeRequest parametrizes a search-and-scrape run.
type SearchScrapeRequest struct {
	Query         string
	NumResults    int
	MaxConcurrent int
	// ReturnRaw skips storage and RAG and returns the scraped markdown.
	ReturnRaw bool
}

// SearchScrapeResult is the outcome of a search-and-scrape run.
type SearchScrapeResult struct {
	Query string   `json:"query"`
	URLs  []string `json:"urls"`
	// Mode is "raw_markdown" or "rag_query".
	Mode string `json:"mode"`
	// Raw maps URL to markdown in raw mode.
	Raw map[string]string `json:"raw,omitempty"`
	// RAGResults maps URL to the query's hits against that URL's source.
	RAGResults  map[string][]search.SearchHit `json:"rag_results,omitempty"`
	URLsFound   int                           `json:"urls_found"`
	URLsScraped int                           `json:"urls_scraped"`
}

// SearchAndScrape runs the full search-and-scrape workflow: the query
// goes to the web search instance, every result URL is scraped and
// stored, and unless raw mode is requested the same query is then run
// as a RAG query against each scraped source.
func (o *Orchestrator) SearchAndScrape(ctx context.Context, req SearchScrapeRequest) (*SearchScrapeResult, error) {
	if o.opts.WebSearcher == nil {
		return nil, errors.New(errors.ErrCodeConfigMissing,
			"web search is not configured, set SEARXNG_URL to your SearXNG instance URL", nil)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.ValidationCode(errors.ErrCodeQueryEmpty, "query cannot be empty")
	}
	if req.NumResults <= 0 {
		req.NumResults = DefaultSearchResults
	}

	urls, err := o.opts.WebSearcher.Search(ctx, req.Query, req.NumResults)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.ExternalService(errors.ErrCodeWebSearch,
			"no search results returned for query", nil)
	}

	scraped, err := o.ScrapeURLs(ctx, urls, req.MaxConcurrent, req.ReturnRaw)
	if err != nil {
		return nil, err
	}

	res := &SearchScrapeResult{
		Query:     req.Query,
		URLs:      urls,
		URLsFound: len(urls),
	}

	if req.ReturnRaw {
		res.Mode = "raw_markdown"
		res.Raw = make(map[string]string, len(scraped.Results))
		for _, r := range scraped.Results {
			if r.Success {
				res.Raw[r.URL] = r.Markdown
				res.URLsScraped++
			}
		}
		return res, nil
	}

	res.Mode = "rag_query"
	var pages []Page
	for _, r := range scraped.Results {
		if r.Success {
			pages = append(pages, Page{URL: r.URL, Success: true})
			res.URLsScraped++
		}
	}

	res.RAGResults = make(map[string][]search.SearchHit, len(pages))
	if len(pages) > 0 {
		byQuery := o.runRAGQueries(ctx, pages, []string{req.Query})
		for url, queries := range byQuery {
			res.RAGResults[url] = queries[req.Query]
		}
	}

	return res, nil
}

type storeOutcome struct {
	chunks       int
	codeExamples int
	sources      int
	chunksByURL  map[string]int
}

// storePages chunks every page, updates source records first so the
// foreign keys exist, then inserts documents and code examples.
func (o *Orchestrator) storePages(ctx context.Context, pages []Page, crawlType string) (*storeOutcome, error) {
	var docs []store.Document
	chunksByURL := make(map[string]int, len(pages))
	sourceContent := make(map[string]string)
	sourceWords := make(map[string]int)

	for _, p := range pages {
		sourceID := SourceID(p.URL)
		if _, ok := sourceContent[sourceID]; !ok {
			sample := p.Markdown
			if len(sample) > sourceSampleLength {
				sample = sample[:sourceSampleLength]
			}
			sourceContent[sourceID] = sample
		}

		for _, c := range chunk.BuildChunks(p.URL, p.Markdown, o.opts.ChunkSize) {
			docs = append(docs, store.Document{
				URL:         c.SourceURL,
				ChunkNumber: c.ChunkIndex,
				Content:     c.Text,
				SourceID:    sourceID,
				Metadata: map[string]any{
					"chunk_index": c.ChunkIndex,
					"url":         c.SourceURL,
					"source":      sourceID,
					"headers":     c.HeaderSummary,
					"char_count":  c.CharCount,
					"word_count":  c.WordCount,
					"crawl_type":  crawlType,
				},
			})
			sourceWords[sourceID] += c.WordCount
			chunksByURL[p.URL]++
		}
	}

	for sourceID, content := range sourceContent {
		summary := o.summarizer.SummarizeSource(sourceID, content)
		if err := o.docs.UpsertSource(ctx, sourceID, summary, sourceWords[sourceID]); err != nil {
			return nil, err
		}
	}

	if err := o.docs.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}

	out := &storeOutcome{
		chunks:      len(docs),
		sources:     len(sourceContent),
		chunksByURL: chunksByURL,
	}

	if o.opts.ExtractCodeExamples {
		n, err := o.storeCodeExamples(ctx, pages)
		if err != nil {
			return nil, err
		}
		out.codeExamples = n
	}

	return out, nil
}

func (o *Orchestrator) storeCodeExamples(ctx context.Context, pages []Page) (int, error) {
	var examples []store.CodeExample
	for _, p := range pages {
		sourceID := SourceID(p.URL)
		for _, block := range chunk.ExtractCodeBlocks(p.Markdown) {
			summary := o.summarizer.SummarizeCode(block.Code, block.ContextBefore, block.ContextAfter)
			idx := len(examples)
			examples = append(examples, store.CodeExample{
				URL:         p.URL,
				ChunkNumber: idx,
				Content:     block.Code,
				Summary:     summary,
				SourceID:    sourceID,
				Metadata: map[string]any{
					"chunk_index": idx,
					"url":         p.URL,
					"source":      sourceID,
					"language":    block.Language,
					"char_count":  len(block.Code),
					"word_count":  len(strings.Fields(block.Code)),
				},
			})
		}
	}

	if len(examples) == 0 {
		return 0, nil
	}
	if err := o.docs.AddCodeExamples(ctx, examples); err != nil {
		return 0, err
	}
	return len(examples), nil
}

// runRAGQueries runs every query against every crawled URL's source,
// at most RAGWorkers queries in flight at a time. Query failures are
// recorded as empty result lists rather than failing the crawl.
func (o *Orchestrator) runRAGQueries(ctx context.Context, pages []Page, queries []string) map[string]map[string][]search.SearchHit {
	results := make(map[string]map[string][]search.SearchHit, len(pages))
	for _, p := range pages {
		results[p.URL] = make(map[string][]search.SearchHit, len(queries))
	}
	if o.engine == nil {
		return results
	}

	sem := semaphore.NewWeighted(int64(o.opts.RAGWorkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range pages {
		for _, q := range queries {
			wg.Add(1)
			go func(pageURL, query string) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					return
				}
				defer sem.Release(1)

				qres, err := o.engine.Query(ctx, search.Request{
					Query:        query,
					SourceFilter: SourceID(pageURL),
					MatchCount:   search.DefaultMatchCount,
					Hybrid:       o.opts.HybridSearch,
				})

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					o.logger.Warn("follow-up query failed",
						slog.String("url", pageURL),
						slog.String("query", query),
						slog.String("error", err.Error()))
					results[pageURL][query] = nil
					return
				}
				results[pageURL][query] = qres.Hits
			}(p.URL, q)
		}
	}
	wg.Wait()

	return results
}

// normalizeURLs trims whitespace and drops empty and duplicate
// entries, keeping first-seen order.
func normalizeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func onlySuccessful(pages []Page) []Page {
	out := pages[:0:0]
	for _, p := range pages {
		if p.Success && p.Markdown != "" {
			out = append(out, p)
		}
	}
	return out
}

// crawledURLs lists up to five crawled URLs for summary output.
func crawledURLs(pages []Page) []string {
	urls := make([]string, 0, 5)
	for _, p := range pages {
		if len(urls) == 5 {
			urls = append(urls, "...")
			break
		}
		urls = append(urls, p.URL)
	}
	return urls
}
