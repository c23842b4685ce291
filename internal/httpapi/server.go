// Package httpapi serves the bridge's REST surface with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crawlbridge/crawlbridge/internal/cache"
	"github.com/crawlbridge/crawlbridge/internal/config"
	cberrors "github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/internal/search"
	"github.com/crawlbridge/crawlbridge/internal/store"
	"github.com/crawlbridge/crawlbridge/pkg/version"
)

// searchTimeout bounds one HTTP search request end to end.
const searchTimeout = 60 * time.Second

// API is the HTTP surface over the search engines and the store.
type API struct {
	docEngine  *search.Engine
	codeEngine *search.Engine
	docs       store.DocumentStore
	config     *config.Config
	logger     *slog.Logger
	queryCache *cache.Cache[searchData]
	started    time.Time
}

// New creates the HTTP API. The code engine may be nil when code example
// search is disabled.
func New(docEngine, codeEngine *search.Engine, docs store.DocumentStore, cfg *config.Config, logger *slog.Logger) *API {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &API{
		docEngine:  docEngine,
		codeEngine: codeEngine,
		docs:       docs,
		config:     cfg,
		logger:     logger,
		started:    time.Now(),
	}
	if cfg.Cache.Enabled {
		a.queryCache = cache.New[searchData](cfg.Cache.Size, cache.SearchTTL)
	}
	return a
}

// Router builds the gin engine with the full middleware stack.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(a.logger))
	r.Use(SecurityHeaders())
	r.Use(CORS(a.config.Server.AllowedOrigins))
	if a.config.Server.RateLimitPerMinute > 0 {
		r.Use(RateLimit(a.config.Server.RateLimitPerMinute))
	}

	r.GET("/health", a.health)

	api := r.Group("/api")
	api.GET("/sources", a.sources)
	api.GET("/search", a.searchGET)
	api.POST("/search", a.searchPOST)
	api.POST("/code-examples", a.codeExamples)
	api.GET("/status", a.status)

	return r
}

// Serve runs the API on the configured host and port until ctx is done.
func (a *API) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// envelope is the uniform response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func okEnvelope(data any) envelope {
	return envelope{Success: true, Data: data}
}

func errorEnvelope(errMsg, message string) envelope {
	return envelope{Success: false, Error: errMsg, Message: message}
}

func (a *API) health(c *gin.Context) {
	status := "healthy"
	dbConnected := true
	if err := a.docs.Ping(c.Request.Context()); err != nil {
		status = "unhealthy"
		dbConnected = false
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, okEnvelope(gin.H{
		"status":         status,
		"version":        version.Version,
		"db_connected":   dbConnected,
		"uptime_seconds": int(time.Since(a.started).Seconds()),
	}))
}

func (a *API) sources(c *gin.Context) {
	sources, err := a.docs.GetSources(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, okEnvelope(gin.H{
		"sources": sources,
		"count":   len(sources),
	}))
}

// searchParams is the common request shape for both search endpoints.
type searchParams struct {
	Query      string `form:"query" json:"query"`
	Source     string `form:"source" json:"source"`
	MatchCount int    `form:"match_count" json:"match_count"`
}

// searchData is the payload under "data" for search responses.
type searchData struct {
	Query        string             `json:"query"`
	Source       string             `json:"source,omitempty"`
	SearchMode   string             `json:"search_mode"`
	Reranked     bool               `json:"reranked"`
	Degraded     []string           `json:"degraded,omitempty"`
	Results      []search.SearchHit `json:"results"`
	Count        int                `json:"count"`
	ProcessingMS int64              `json:"processing_ms"`
}

// validate rejects out-of-range parameters instead of clamping them.
// A zero match_count takes the default.
func (p *searchParams) validate(cfg *config.Config) error {
	if p.Query == "" {
		return cberrors.ValidationCode(cberrors.ErrCodeQueryEmpty, "query parameter is required")
	}
	if p.MatchCount == 0 {
		p.MatchCount = cfg.Search.DefaultMatchCount
	}
	if p.MatchCount < 1 || p.MatchCount > cfg.Search.MaxMatchCount {
		return cberrors.ValidationCode(cberrors.ErrCodeMatchCountRange,
			fmt.Sprintf("match_count must be between 1 and %d", cfg.Search.MaxMatchCount))
	}
	if len(p.Source) > search.MaxSourceFilterLength {
		return cberrors.ValidationCode(cberrors.ErrCodeSourceFilterLong,
			fmt.Sprintf("source must be at most %d characters", search.MaxSourceFilterLength))
	}
	return nil
}

func (a *API) searchGET(c *gin.Context) {
	var p searchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		a.respondError(c, cberrors.Validation(err.Error()))
		return
	}
	a.runSearch(c, a.docEngine, "search", p)
}

func (a *API) searchPOST(c *gin.Context) {
	var p searchParams
	if err := c.ShouldBindJSON(&p); err != nil {
		a.respondError(c, cberrors.Validation("invalid request body: "+err.Error()))
		return
	}
	a.runSearch(c, a.docEngine, "search", p)
}

func (a *API) codeExamples(c *gin.Context) {
	if a.codeEngine == nil {
		c.JSON(http.StatusForbidden, errorEnvelope(
			"code example search disabled",
			"Set USE_AGENTIC_RAG=true to enable code example extraction and search."))
		return
	}

	var p searchParams
	if err := c.ShouldBindJSON(&p); err != nil {
		a.respondError(c, cberrors.Validation("invalid request body: "+err.Error()))
		return
	}
	a.runSearch(c, a.codeEngine, "code-examples", p)
}

func (a *API) runSearch(c *gin.Context, engine *search.Engine, kind string, p searchParams) {
	if err := p.validate(a.config); err != nil {
		a.respondError(c, err)
		return
	}

	key := cache.Key(kind, p.Query, p.Source, p.MatchCount, a.config.Search.UseHybrid)
	if a.queryCache != nil {
		if data, ok := a.queryCache.Get(key); ok {
			c.JSON(http.StatusOK, okEnvelope(data))
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	res, err := engine.Query(ctx, search.Request{
		Query:        p.Query,
		SourceFilter: p.Source,
		MatchCount:   p.MatchCount,
		Hybrid:       a.config.Search.UseHybrid,
		Rerank:       a.config.Search.UseReranking,
	})
	if err != nil {
		a.respondError(c, err)
		return
	}

	data := searchData{
		Query:        p.Query,
		Source:       p.Source,
		SearchMode:   res.SearchMode,
		Reranked:     res.Reranked,
		Degraded:     res.Degraded,
		Results:      res.Hits,
		Count:        len(res.Hits),
		ProcessingMS: res.ProcessingTime.Milliseconds(),
	}
	if a.queryCache != nil {
		a.queryCache.Set(key, data)
	}
	c.JSON(http.StatusOK, okEnvelope(data))
}

func (a *API) status(c *gin.Context) {
	data := gin.H{
		"status":  "operational",
		"version": version.Version,
		"endpoints": []string{
			"/health",
			"/api/sources",
			"/api/search",
			"/api/code-examples",
			"/api/status",
		},
		"features": gin.H{
			"hybrid_search":   a.config.Search.UseHybrid,
			"reranking":       a.config.Search.UseReranking,
			"code_examples":   a.config.Search.UseAgenticRAG,
			"knowledge_graph": a.config.Graph.Enabled,
		},
		"uptime_seconds": int(time.Since(a.started).Seconds()),
	}
	if a.queryCache != nil {
		data["cache"] = a.queryCache.Stats()
	}
	c.JSON(http.StatusOK, okEnvelope(data))
}

// respondError maps internal errors to HTTP status codes and the
// uniform envelope.
func (a *API) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "An internal error occurred."

	var be *cberrors.BridgeError
	if errors.As(err, &be) {
		switch be.Category {
		case cberrors.CategoryValidation:
			status = http.StatusUnprocessableEntity
			message = "Request validation failed."
		case cberrors.CategoryBackend:
			status = http.StatusBadGateway
			message = "A search backend failed."
			if be.Code == cberrors.ErrCodeBackendTimeout {
				status = http.StatusGatewayTimeout
				message = "The search backend timed out."
			}
		case cberrors.CategoryExternal:
			status = http.StatusBadGateway
			message = "An upstream service failed."
		}
	}

	reqID, _ := c.Get("request_id")
	a.logger.Error("http request failed",
		slog.Any("request_id", reqID),
		slog.String("error", err.Error()),
		slog.Int("status", status))

	c.JSON(status, errorEnvelope(err.Error(), message))
}
