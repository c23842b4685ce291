package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crawlbridge/crawlbridge/internal/config"
	"github.com/crawlbridge/crawlbridge/internal/crawl"
	"github.com/crawlbridge/crawlbridge/internal/embed"
	cberrors "github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/internal/httpapi"
	"github.com/crawlbridge/crawlbridge/internal/kg"
	"github.com/crawlbridge/crawlbridge/internal/logging"
	"github.com/crawlbridge/crawlbridge/internal/mcp"
	"github.com/crawlbridge/crawlbridge/internal/search"
	"github.com/crawlbridge/crawlbridge/internal/store"
	"github.com/crawlbridge/crawlbridge/internal/websearch"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var transport string
	var withHTTP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the crawlbridge MCP server.

With --transport stdio (the default) the server speaks JSON-RPC on
stdin/stdout and logs only to file. --with-http additionally starts
the REST API on the configured host and port.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, withHTTP)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "MCP transport: stdio (default from config)")
	cmd.Flags().BoolVar(&withHTTP, "with-http", false, "Also serve the REST API")

	return cmd
}

func runServe(ctx context.Context, transport string, withHTTP bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if transport == "" {
		transport = cfg.Server.Transport
	}

	// In stdio mode stdout carries JSON-RPC, so logs go to file only.
	var cleanup func()
	if transport == "stdio" {
		cleanup, err = logging.SetupStdioMode(cfg.Server.LogLevel)
	} else {
		cleanup, err = logging.SetupServerMode(cfg.Server.LogLevel)
	}
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer cleanup()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Store.DatabaseURL == "" {
		return cberrors.New(cberrors.ErrCodeConfigMissing,
			"DATABASE_URL is required", nil)
	}

	embedder := embed.NewHTTPEmbedder(embed.Config{
		Endpoint:   cfg.Search.EmbeddingURL,
		Model:      cfg.Search.EmbeddingModel,
		Dimensions: cfg.Search.EmbeddingDimensions,
	})
	defer embedder.Close()

	docs, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL, embedder, cfg.Store.InsertBatchSize, logger)
	if err != nil {
		return fmt.Errorf("connecting to Postgres: %w", err)
	}
	defer docs.Close()
	if err := docs.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	var reranker search.Reranker
	if cfg.Search.UseReranking && cfg.Search.RerankerURL != "" {
		reranker = search.NewHTTPReranker(cfg.Search.RerankerURL, cfg.Search.RerankerModel)
	}

	docEngine := search.NewEngine(docs, docs, reranker, logger)

	var codeEngine *search.Engine
	if cfg.Search.UseAgenticRAG {
		backend := store.CodeExampleBackend{Store: docs}
		codeEngine = search.NewEngine(backend, backend, reranker, logger)
	}

	var webSearcher crawl.WebSearcher
	if cfg.WebSearch.URL != "" {
		ws := websearch.NewClient(websearch.Config{
			Endpoint:  cfg.WebSearch.URL,
			UserAgent: cfg.WebSearch.UserAgent,
			Engines:   cfg.WebSearch.Engines,
			Timeout:   cfg.WebSearch.Timeout,
		})
		defer ws.Close()
		webSearcher = ws
	}

	crawler := crawl.NewHTTPCrawler(cfg.Crawl.CrawlerURL, cfg.Crawl.RequestTimeout)
	orchestrator := crawl.NewOrchestrator(crawler, docs, docEngine, crawl.Options{
		ChunkSize:           cfg.Crawl.ChunkSize,
		ExtractCodeExamples: cfg.Search.UseAgenticRAG,
		HybridSearch:        cfg.Search.UseHybrid,
		RAGWorkers:          cfg.Crawl.RAGWorkers,
		WebSearcher:         webSearcher,
	}, logger)

	var explorer *kg.Explorer
	if cfg.Graph.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		runner, err := kg.NewNeo4jRunner(connectCtx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to Neo4j: %w", err)
		}
		defer runner.Close(context.Background())
		explorer = kg.NewExplorer(runner)
	}

	server, err := mcp.NewServer(orchestrator, docEngine, codeEngine, docs, explorer, cfg, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, transport)
	})
	if withHTTP {
		api := httpapi.New(docEngine, codeEngine, docs, cfg, logger)
		g.Go(func() error {
			return api.Serve(gctx)
		})
	}

	return g.Wait()
}
