package crawl

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/internal/search"
	"github.com/crawlbridge/crawlbridge/internal/store"
)

// fakeStore records every persistence call in order.
type fakeStore struct {
	mu       sync.Mutex
	calls    []string
	docs     []store.Document
	examples []store.CodeExample
	sources  map[string]string
	addErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sources: make(map[string]string)}
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "AddDocuments")
	f.docs = append(f.docs, docs...)
	return f.addErr
}

func (f *fakeStore) AddCodeExamples(_ context.Context, examples []store.CodeExample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "AddCodeExamples")
	f.examples = append(f.examples, examples...)
	return nil
}

func (f *fakeStore) UpsertSource(_ context.Context, sourceID, summary string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpsertSource")
	f.sources[sourceID] = summary
	return nil
}

func (f *fakeStore) GetSources(context.Context) ([]store.Source, error) { return nil, nil }

func (f *fakeStore) SearchDocuments(context.Context, string, int, string) ([]search.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) SearchKeyword(context.Context, string, int, string) ([]search.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) SearchCodeExamples(context.Context, string, int, string) ([]search.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) SearchCodeExamplesKeyword(context.Context, string, int, string) ([]search.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close()                     {}

func TestScrapeURLs_MixedResults(t *testing.T) {
	fc := newFakeCrawler(
		page("https://a.test/ok", "Some page content here."),
	)
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	res, err := o.ScrapeURLs(context.Background(), []string{"https://a.test/ok", "https://a.test/bad"}, 2, false)
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, 1, res.PagesCrawled)

	byURL := map[string]URLResult{}
	for _, r := range res.Results {
		byURL[r.URL] = r
	}
	assert.True(t, byURL["https://a.test/ok"].Success)
	assert.Equal(t, 1, byURL["https://a.test/ok"].ChunksStored)
	assert.False(t, byURL["https://a.test/bad"].Success)
	assert.NotEmpty(t, byURL["https://a.test/bad"].Error)
}

func TestScrapeURLs_NoURLs(t *testing.T) {
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{}, nil)

	_, err := o.ScrapeURLs(context.Background(), nil, 2, false)
	assert.True(t, errors.IsValidation(err))
}

func TestScrapeURLs_RawModeSkipsStorage(t *testing.T) {
	fc := newFakeCrawler(page("https://a.test/", "# Title\n\nBody text."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	res, err := o.ScrapeURLs(context.Background(), []string{"https://a.test/"}, 1, true)
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	assert.Equal(t, "# Title\n\nBody text.", res.Results[0].Markdown)
	assert.Empty(t, fs.calls)
}

func TestScrapeURLs_SourcesBeforeDocuments(t *testing.T) {
	fc := newFakeCrawler(page("https://a.test/page", "Chunk one content."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	_, err := o.ScrapeURLs(context.Background(), []string{"https://a.test/page"}, 1, false)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(fs.calls), 2)
	assert.Equal(t, "UpsertSource", fs.calls[0])
	assert.Equal(t, "AddDocuments", fs.calls[1])
	assert.Contains(t, fs.sources, "a.test")
}

func TestScrapeURLs_DocumentMetadata(t *testing.T) {
	fc := newFakeCrawler(page("https://a.test/doc", "## Setup\n\nInstall the thing."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	_, err := o.ScrapeURLs(context.Background(), []string{"https://a.test/doc"}, 1, false)
	require.NoError(t, err)

	require.Len(t, fs.docs, 1)
	d := fs.docs[0]
	assert.Equal(t, "https://a.test/doc", d.URL)
	assert.Equal(t, 0, d.ChunkNumber)
	assert.Equal(t, "a.test", d.SourceID)
	assert.Equal(t, 0, d.Metadata["chunk_index"])
	assert.Equal(t, "webpage", d.Metadata["crawl_type"])
	assert.Equal(t, "## Setup", d.Metadata["headers"])
}

func TestScrapeURLs_CodeExamplesOnlyWhenEnabled(t *testing.T) {
	code := strings.Repeat("x := 1\n", 200)
	md := "Intro.\n\n```go\n" + code + "```\n\nOutro."

	fc := newFakeCrawler(page("https://a.test/code", md))

	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)
	_, err := o.ScrapeURLs(context.Background(), []string{"https://a.test/code"}, 1, false)
	require.NoError(t, err)
	assert.Empty(t, fs.examples)

	fs = newFakeStore()
	o = NewOrchestrator(fc, fs, nil, Options{ExtractCodeExamples: true}, nil)
	res, err := o.ScrapeURLs(context.Background(), []string{"https://a.test/code"}, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCodeExamples)
	require.Len(t, fs.examples, 1)
	assert.Equal(t, "go", fs.examples[0].Metadata["language"])
	assert.NotEmpty(t, fs.examples[0].Summary)
}

func TestSmartCrawl_TextFile(t *testing.T) {
	fc := newFakeCrawler(page("https://a.test/llms.txt", "Plain text content."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	res, err := o.SmartCrawl(context.Background(), SmartCrawlRequest{URL: "https://a.test/llms.txt"})
	require.NoError(t, err)

	assert.Equal(t, CrawlTypeTextFile, res.CrawlType)
	assert.Equal(t, 1, res.PagesCrawled)
	assert.Equal(t, []string{"https://a.test/llms.txt"}, res.URLsCrawled)
}

func TestSmartCrawl_Webpage(t *testing.T) {
	fc := newFakeCrawler(
		page("https://a.test/", "Root page.", "https://a.test/sub"),
		page("https://a.test/sub", "Sub page."),
	)
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	res, err := o.SmartCrawl(context.Background(), SmartCrawlRequest{URL: "https://a.test/", MaxDepth: 2})
	require.NoError(t, err)

	assert.Equal(t, CrawlTypeWebpage, res.CrawlType)
	assert.Equal(t, 2, res.PagesCrawled)
	assert.Equal(t, 2, res.ChunksStored)
	assert.Equal(t, 1, res.SourcesUpdated)
}

func TestSmartCrawl_EmptyURL(t *testing.T) {
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{}, nil)

	_, err := o.SmartCrawl(context.Background(), SmartCrawlRequest{})
	assert.Equal(t, errors.ErrCodeInvalidURL, errors.GetCode(err))
}

func TestSmartCrawl_NoContent(t *testing.T) {
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{}, nil)

	_, err := o.SmartCrawl(context.Background(), SmartCrawlRequest{URL: "https://a.test/empty"})
	assert.Equal(t, errors.ErrCodeCrawlerUnavailable, errors.GetCode(err))
}

func TestSmartCrawl_RawMode(t *testing.T) {
	fc := newFakeCrawler(page("https://a.test/llms.txt", "Raw body."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	res, err := o.SmartCrawl(context.Background(), SmartCrawlRequest{URL: "https://a.test/llms.txt", ReturnRaw: true})
	require.NoError(t, err)

	assert.Equal(t, "Raw body.", res.Raw["https://a.test/llms.txt"])
	assert.Zero(t, res.ChunksStored)
	assert.Empty(t, fs.calls)
}

func TestSmartCrawl_RAGQueries(t *testing.T) {
	hit := search.SearchHit{ID: "1", URL: "https://a.test/", Content: "Root page.", Similarity: 0.9}
	vec := &queryRecorder{hits: []search.SearchHit{hit}}
	engine := search.NewEngine(vec, nil, nil, nil)

	fc := newFakeCrawler(page("https://a.test/llms.txt", "Plain text content."))
	o := NewOrchestrator(fc, newFakeStore(), engine, Options{}, nil)

	res, err := o.SmartCrawl(context.Background(), SmartCrawlRequest{
		URL:     "https://a.test/llms.txt",
		Queries: []string{"what is this"},
	})
	require.NoError(t, err)

	require.Contains(t, res.QueryResults, "https://a.test/llms.txt")
	got := res.QueryResults["https://a.test/llms.txt"]["what is this"]
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	vec.mu.Lock()
	defer vec.mu.Unlock()
	require.Len(t, vec.filters, 1)
	assert.Equal(t, "a.test", vec.filters[0])
}

// queryRecorder is a VectorSearcher that returns fixed hits and records
// the source filters it was called with.
type queryRecorder struct {
	mu      sync.Mutex
	hits    []search.SearchHit
	filters []string
}

func (q *queryRecorder) SearchDocuments(_ context.Context, _ string, _ int, sourceFilter string) ([]search.SearchHit, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.filters = append(q.filters, sourceFilter)
	return q.hits, nil
}

func TestCrawledURLs_Caps(t *testing.T) {
	var pages []Page
	for i := 0; i < 7; i++ {
		pages = append(pages, page("https://a.test/"+string(rune('a'+i)), "x"))
	}
	got := crawledURLs(pages)
	require.Len(t, got, 6)
	assert.Equal(t, "...", got[5])
}

func TestScrapeURLs_DeduplicatesAndTrims(t *testing.T) {
	fc := newFakeCrawler(page("https://a.test/dup", "Duplicate page content."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{}, nil)

	res, err := o.ScrapeURLs(context.Background(), []string{
		"https://a.test/dup",
		"  https://a.test/dup  ",
		"",
		"https://a.test/dup",
	}, 2, false)
	require.NoError(t, err)

	// A repeated URL would otherwise store two chunks with the same
	// (url, chunk_number) and fail the unique constraint.
	assert.Equal(t, 1, fc.timesCrawled("https://a.test/dup"))
	require.Len(t, res.Results, 1)
	assert.Len(t, fs.docs, 1)
}

func TestScrapeURLs_OnlyBlankURLs(t *testing.T) {
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{}, nil)

	_, err := o.ScrapeURLs(context.Background(), []string{"", "   "}, 2, false)
	assert.True(t, errors.IsValidation(err))
}

// fakeWebSearcher returns a fixed URL list for any query.
type fakeWebSearcher struct {
	urls    []string
	err     error
	queries []string
}

func (f *fakeWebSearcher) Search(_ context.Context, query string, _ int) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.urls, f.err
}

func TestSearchAndScrape_RAGMode(t *testing.T) {
	hit := search.SearchHit{ID: "1", URL: "https://a.test/found", Content: "Found it.", Similarity: 0.9}
	vec := &queryRecorder{hits: []search.SearchHit{hit}}
	engine := search.NewEngine(vec, nil, nil, nil)

	ws := &fakeWebSearcher{urls: []string{"https://a.test/found"}}
	fc := newFakeCrawler(page("https://a.test/found", "Found page content."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, engine, Options{WebSearcher: ws}, nil)

	res, err := o.SearchAndScrape(context.Background(), SearchScrapeRequest{Query: "how to find"})
	require.NoError(t, err)

	assert.Equal(t, []string{"how to find"}, ws.queries)
	assert.Equal(t, "rag_query", res.Mode)
	assert.Equal(t, 1, res.URLsFound)
	assert.Equal(t, 1, res.URLsScraped)
	require.Contains(t, res.RAGResults, "https://a.test/found")
	require.Len(t, res.RAGResults["https://a.test/found"], 1)
	assert.Equal(t, "1", res.RAGResults["https://a.test/found"][0].ID)

	// Content was stored before the RAG query ran against it.
	assert.NotEmpty(t, fs.docs)
	vec.mu.Lock()
	defer vec.mu.Unlock()
	assert.Equal(t, []string{"a.test"}, vec.filters)
}

func TestSearchAndScrape_RawMode(t *testing.T) {
	ws := &fakeWebSearcher{urls: []string{"https://a.test/raw"}}
	fc := newFakeCrawler(page("https://a.test/raw", "Raw markdown."))
	fs := newFakeStore()
	o := NewOrchestrator(fc, fs, nil, Options{WebSearcher: ws}, nil)

	res, err := o.SearchAndScrape(context.Background(), SearchScrapeRequest{Query: "q", ReturnRaw: true})
	require.NoError(t, err)

	assert.Equal(t, "raw_markdown", res.Mode)
	assert.Equal(t, "Raw markdown.", res.Raw["https://a.test/raw"])
	assert.Empty(t, fs.calls)
}

func TestSearchAndScrape_NotConfigured(t *testing.T) {
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{}, nil)

	_, err := o.SearchAndScrape(context.Background(), SearchScrapeRequest{Query: "q"})
	assert.Equal(t, errors.ErrCodeConfigMissing, errors.GetCode(err))
}

func TestSearchAndScrape_EmptyQuery(t *testing.T) {
	ws := &fakeWebSearcher{urls: []string{"https://a.test/"}}
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{WebSearcher: ws}, nil)

	_, err := o.SearchAndScrape(context.Background(), SearchScrapeRequest{Query: "  "})
	assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
}

func TestSearchAndScrape_NoResults(t *testing.T) {
	ws := &fakeWebSearcher{}
	o := NewOrchestrator(newFakeCrawler(), newFakeStore(), nil, Options{WebSearcher: ws}, nil)

	_, err := o.SearchAndScrape(context.Background(), SearchScrapeRequest{Query: "nothing"})
	assert.Equal(t, errors.ErrCodeWebSearch, errors.GetCode(err))
}

// gauge tracks the peak number of concurrent calls.
type gauge struct {
	mu       sync.Mutex
	inflight int
	peak     int
}

func (g *gauge) enter() {
	g.mu.Lock()
	g.inflight++
	if g.inflight > g.peak {
		g.peak = g.inflight
	}
	g.mu.Unlock()
}

func (g *gauge) exit() {
	g.mu.Lock()
	g.inflight--
	g.mu.Unlock()
}

func (g *gauge) max() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// blockingSearcher holds every query briefly so overlap is observable.
type blockingSearcher struct {
	g gauge
}

func (b *blockingSearcher) SearchDocuments(context.Context, string, int, string) ([]search.SearchHit, error) {
	b.g.enter()
	defer b.g.exit()
	time.Sleep(10 * time.Millisecond)
	return []search.SearchHit{{ID: "1", Similarity: 0.5}}, nil
}

func TestRunRAGQueries_HonorsWorkerBound(t *testing.T) {
	bs := &blockingSearcher{}
	engine := search.NewEngine(bs, nil, nil, nil)

	var pages []Page
	fc := newFakeCrawler()
	for _, u := range []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"} {
		pages = append(pages, page(u, "content"))
	}
	o := NewOrchestrator(fc, newFakeStore(), engine, Options{RAGWorkers: 2}, nil)

	queries := []string{"q1", "q2", "q3", "q4"}
	results := o.runRAGQueries(context.Background(), pages, queries)

	assert.Len(t, results, 3)
	for _, byQuery := range results {
		assert.Len(t, byQuery, len(queries))
	}
	assert.LessOrEqual(t, bs.g.max(), 2)
	assert.Greater(t, bs.g.max(), 0)
}
