package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crawlbridge/crawlbridge/internal/cache"
	"github.com/crawlbridge/crawlbridge/internal/config"
	"github.com/crawlbridge/crawlbridge/internal/crawl"
	cberrors "github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/internal/kg"
	"github.com/crawlbridge/crawlbridge/internal/search"
	"github.com/crawlbridge/crawlbridge/internal/store"
	"github.com/crawlbridge/crawlbridge/pkg/version"
)

// Server is the MCP server for crawlbridge. It bridges AI clients with
// the crawler, the RAG engines, and the knowledge graph.
type Server struct {
	mcp          *mcp.Server
	orchestrator *crawl.Orchestrator
	docEngine    *search.Engine
	codeEngine   *search.Engine
	docs         store.DocumentStore
	explorer     *kg.Explorer
	config       *config.Config
	logger       *slog.Logger

	sourcesCache *cache.Cache[SourcesOutput]
	queryCache   *cache.Cache[RAGQueryOutput]
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates the MCP server and registers its tools. The code
// engine and explorer may be nil when their features are disabled.
func NewServer(orchestrator *crawl.Orchestrator, docEngine, codeEngine *search.Engine, docs store.DocumentStore, explorer *kg.Explorer, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if docEngine == nil {
		return nil, errors.New("search engine is required")
	}
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orchestrator: orchestrator,
		docEngine:    docEngine,
		codeEngine:   codeEngine,
		docs:         docs,
		explorer:     explorer,
		config:       cfg,
		logger:       logger,
	}

	if cfg.Cache.Enabled {
		s.sourcesCache = cache.New[SourcesOutput](cfg.Cache.Size, cache.SourcesTTL)
		s.queryCache = cache.New[RAGQueryOutput](cfg.Cache.Size, cfg.Cache.TTL)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "crawlbridge",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer exposes the underlying SDK server for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "crawlbridge", version.Version
}

// ListTools returns the tools this server registers, in registration order.
func (s *Server) ListTools() []ToolInfo {
	tools := []ToolInfo{
		{Name: "scrape_urls", Description: "Scrape one or more URLs and store their content for retrieval."},
		{Name: "smart_crawl_url", Description: "Crawl a URL with a strategy chosen from its type."},
		{Name: "search", Description: "Web search, scrape the results, and answer the query against them."},
		{Name: "get_available_sources", Description: "List crawled sources with summaries."},
		{Name: "perform_rag_query", Description: "Search crawled content."},
	}
	if s.config.Search.UseAgenticRAG {
		tools = append(tools, ToolInfo{Name: "search_code_examples", Description: "Search extracted code examples."})
	}
	if s.config.Graph.Enabled {
		tools = append(tools, ToolInfo{Name: "query_knowledge_graph", Description: "Explore the repository knowledge graph."})
	}
	return tools
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scrape_urls",
		Description: "Scrape one or more URLs, convert them to markdown, chunk the content, and store it for retrieval. Use return_raw to get the markdown back without storing.",
	}, s.scrapeURLsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "smart_crawl_url",
		Description: "Crawl a URL with a strategy chosen from its type: .txt files are fetched directly, sitemaps fan out to every listed URL, and regular pages are crawled recursively through internal links.",
	}, s.smartCrawlHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the web via the configured SearXNG instance, scrape every result URL, and answer the query against the scraped content. Use return_raw to get the scraped markdown instead.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_available_sources",
		Description: "List every crawled source with its summary and word count. Use this before filtered queries to see which source ids exist.",
	}, s.sourcesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "perform_rag_query",
		Description: "Search crawled content for relevant chunks. Supports filtering by source id and hybrid vector plus keyword search when enabled.",
	}, s.ragQueryHandler)

	count := 5

	if s.config.Search.UseAgenticRAG {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "search_code_examples",
			Description: "Search code examples extracted from crawled documentation. Each result carries a summary of what the code does.",
		}, s.codeSearchHandler)
		count++
	}

	if s.config.Graph.Enabled {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "query_knowledge_graph",
			Description: "Explore the Neo4j knowledge graph of parsed repositories. Start with the repos command, then explore <repo>, classes [repo], class <name>, method <name> [class], or query <cypher>.",
		}, s.graphQueryHandler)
		count++
	}

	s.logger.Info("MCP tools registered", slog.Int("count", count))
}

func (s *Server) scrapeURLsHandler(ctx context.Context, _ *mcp.CallToolRequest, input ScrapeURLsInput) (
	*mcp.CallToolResult,
	ScrapeURLsOutput,
	error,
) {
	reqID := uuid.NewString()
	log := s.logger.With(slog.String("request_id", reqID), slog.String("tool", "scrape_urls"))

	if len(input.URLs) == 0 {
		return nil, ScrapeURLsOutput{}, NewInvalidParamsError("urls parameter is required")
	}

	log.Info("scraping URLs", slog.Int("count", len(input.URLs)))

	res, err := s.orchestrator.ScrapeURLs(ctx, input.URLs, input.MaxConcurrent, input.ReturnRaw)
	if err != nil {
		log.Error("scrape failed", slog.String("error", err.Error()))
		return nil, ScrapeURLsOutput{}, MapError(err)
	}

	out := ScrapeURLsOutput{
		Results:           make([]URLOutcome, 0, len(res.Results)),
		PagesCrawled:      res.PagesCrawled,
		TotalChunks:       res.TotalChunks,
		TotalCodeExamples: res.TotalCodeExamples,
		SourcesUpdated:    res.SourcesUpdated,
	}
	for _, r := range res.Results {
		out.Results = append(out.Results, URLOutcome{
			URL:           r.URL,
			Success:       r.Success,
			ChunksStored:  r.ChunksStored,
			ContentLength: r.ContentLength,
			Markdown:      r.Markdown,
			Error:         r.Error,
		})
	}

	s.invalidateReadCaches()
	return nil, out, nil
}

func (s *Server) smartCrawlHandler(ctx context.Context, _ *mcp.CallToolRequest, input SmartCrawlInput) (
	*mcp.CallToolResult,
	SmartCrawlOutput,
	error,
) {
	reqID := uuid.NewString()
	log := s.logger.With(slog.String("request_id", reqID), slog.String("tool", "smart_crawl_url"))

	if input.URL == "" {
		return nil, SmartCrawlOutput{}, NewInvalidParamsError("url parameter is required")
	}

	log.Info("smart crawl", slog.String("url", input.URL), slog.Int("max_depth", input.MaxDepth))

	res, err := s.orchestrator.SmartCrawl(ctx, crawl.SmartCrawlRequest{
		URL:           input.URL,
		MaxDepth:      input.MaxDepth,
		MaxConcurrent: input.MaxConcurrent,
		ReturnRaw:     input.ReturnRaw,
		Queries:       input.Queries,
	})
	if err != nil {
		log.Error("smart crawl failed", slog.String("error", err.Error()))
		return nil, SmartCrawlOutput{}, MapError(err)
	}

	out := SmartCrawlOutput{
		URL:                res.URL,
		CrawlType:          res.CrawlType,
		PagesCrawled:       res.PagesCrawled,
		ChunksStored:       res.ChunksStored,
		CodeExamplesStored: res.CodeExamplesStored,
		SourcesUpdated:     res.SourcesUpdated,
		URLsCrawled:        res.URLsCrawled,
		Raw:                res.Raw,
	}
	if res.QueryResults != nil {
		out.QueryResults = make(map[string]map[string][]RAGHit, len(res.QueryResults))
		for url, byQuery := range res.QueryResults {
			out.QueryResults[url] = make(map[string][]RAGHit, len(byQuery))
			for q, hits := range byQuery {
				out.QueryResults[url][q] = toRAGHits(hits)
			}
		}
	}

	log.Info("smart crawl finished",
		slog.String("crawl_type", res.CrawlType),
		slog.Int("pages", res.PagesCrawled),
		slog.Int("chunks", res.ChunksStored))

	s.invalidateReadCaches()
	return nil, out, nil
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	reqID := uuid.NewString()
	log := s.logger.With(slog.String("request_id", reqID), slog.String("tool", "search"))

	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	log.Info("search and scrape", slog.String("query", input.Query))
	start := time.Now()

	res, err := s.orchestrator.SearchAndScrape(ctx, crawl.SearchScrapeRequest{
		Query:         input.Query,
		NumResults:    input.NumResults,
		MaxConcurrent: input.MaxConcurrent,
		ReturnRaw:     input.ReturnRaw,
	})
	if err != nil {
		log.Error("search failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{
		Query:        res.Query,
		URLs:         res.URLs,
		Mode:         res.Mode,
		Raw:          res.Raw,
		URLsFound:    res.URLsFound,
		URLsScraped:  res.URLsScraped,
		ProcessingMS: time.Since(start).Milliseconds(),
	}
	if res.RAGResults != nil {
		out.RAGResults = make(map[string][]RAGHit, len(res.RAGResults))
		for url, hits := range res.RAGResults {
			out.RAGResults[url] = toRAGHits(hits)
		}
	}

	log.Info("search finished",
		slog.String("mode", res.Mode),
		slog.Int("urls_scraped", res.URLsScraped))

	s.invalidateReadCaches()
	return nil, out, nil
}

func (s *Server) sourcesHandler(ctx context.Context, _ *mcp.CallToolRequest, _ SourcesInput) (
	*mcp.CallToolResult,
	SourcesOutput,
	error,
) {
	if s.sourcesCache != nil {
		if out, ok := s.sourcesCache.Get("sources"); ok {
			return nil, out, nil
		}
	}

	sources, err := s.docs.GetSources(ctx)
	if err != nil {
		return nil, SourcesOutput{}, MapError(err)
	}

	out := SourcesOutput{Sources: make([]SourceInfo, 0, len(sources)), Count: len(sources)}
	for _, src := range sources {
		out.Sources = append(out.Sources, SourceInfo{
			SourceID:   src.SourceID,
			Summary:    src.Summary,
			TotalWords: src.TotalWords,
			CreatedAt:  src.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  src.UpdatedAt.Format(time.RFC3339),
		})
	}

	if s.sourcesCache != nil {
		s.sourcesCache.Set("sources", out)
	}
	return nil, out, nil
}

func (s *Server) ragQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, input RAGQueryInput) (
	*mcp.CallToolResult,
	RAGQueryOutput,
	error,
) {
	out, err := s.runQuery(ctx, s.docEngine, "perform_rag_query", input.Query, input.Source, input.MatchCount)
	if err != nil {
		return nil, RAGQueryOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) codeSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input CodeSearchInput) (
	*mcp.CallToolResult,
	RAGQueryOutput,
	error,
) {
	if s.codeEngine == nil {
		return nil, RAGQueryOutput{}, &MCPError{
			Code:    ErrCodeInvalidRequest,
			Message: "Code example search is disabled. Set USE_AGENTIC_RAG=true to enable it.",
		}
	}

	out, err := s.runQuery(ctx, s.codeEngine, "search_code_examples", input.Query, input.SourceID, input.MatchCount)
	if err != nil {
		return nil, RAGQueryOutput{}, MapError(err)
	}
	return nil, out, nil
}

func (s *Server) runQuery(ctx context.Context, engine *search.Engine, tool, query, source string, matchCount int) (RAGQueryOutput, error) {
	reqID := uuid.NewString()
	log := s.logger.With(slog.String("request_id", reqID), slog.String("tool", tool))

	key := cache.Key(tool, query, source, matchCount, s.config.Search.UseHybrid)
	if s.queryCache != nil {
		if out, ok := s.queryCache.Get(key); ok {
			log.Debug("query cache hit")
			return out, nil
		}
	}

	res, err := engine.Query(ctx, search.Request{
		Query:        query,
		SourceFilter: source,
		MatchCount:   matchCount,
		Hybrid:       s.config.Search.UseHybrid,
		Rerank:       s.config.Search.UseReranking,
	})
	if err != nil {
		log.Error("query failed",
			slog.String("error", err.Error()),
			slog.String("code", cberrors.GetCode(err)))
		return RAGQueryOutput{}, err
	}

	out := RAGQueryOutput{
		Query:        query,
		Source:       source,
		SearchMode:   res.SearchMode,
		Reranked:     res.Reranked,
		Degraded:     res.Degraded,
		Results:      toRAGHits(res.Hits),
		Count:        len(res.Hits),
		ProcessingMS: res.ProcessingTime.Milliseconds(),
	}

	if s.queryCache != nil {
		s.queryCache.Set(key, out)
	}

	log.Info("query finished",
		slog.String("mode", res.SearchMode),
		slog.Int("results", len(res.Hits)))
	return out, nil
}

func (s *Server) graphQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, input GraphQueryInput) (
	*mcp.CallToolResult,
	GraphQueryOutput,
	error,
) {
	if s.explorer == nil {
		return nil, GraphQueryOutput{}, &MCPError{
			Code:    ErrCodeGraphUnavailable,
			Message: "Knowledge graph functionality is disabled. Set USE_KNOWLEDGE_GRAPH=true to enable it.",
		}
	}

	res, err := s.explorer.Execute(ctx, input.Command)
	if err != nil {
		return nil, GraphQueryOutput{}, MapError(err)
	}
	return nil, *res, nil
}

// invalidateReadCaches drops cached reads after a write path changes the
// underlying data.
func (s *Server) invalidateReadCaches() {
	if s.sourcesCache != nil {
		s.sourcesCache.Clear()
	}
	if s.queryCache != nil {
		s.queryCache.Clear()
	}
}

func toRAGHits(hits []search.SearchHit) []RAGHit {
	out := make([]RAGHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, RAGHit{
			ID:          h.ID,
			URL:         h.URL,
			ChunkNumber: h.ChunkNumber,
			Content:     h.Content,
			Metadata:    h.Metadata,
			SourceID:    h.SourceID,
			Similarity:  h.Similarity,
		})
	}
	return out
}

// Serve runs the MCP server over the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
