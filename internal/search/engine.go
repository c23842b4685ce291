package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// Timeout budgets per backend call. A timed-out backend degrades to an
// empty result set in hybrid mode; only the vector-only path treats its
// timeout as a hard failure.
const (
	vectorSearchTimeout  = 15 * time.Second
	keywordSearchTimeout = 10 * time.Second
	vectorOnlyTimeout    = 20 * time.Second
	rerankTimeout        = 10 * time.Second
)

// MaxMatchCount caps how many results a single query may request.
const MaxMatchCount = 50

// DefaultMatchCount is used when a request does not specify a count.
const DefaultMatchCount = 5

// MaxSourceFilterLength caps the source filter, matching the column
// width of source identifiers in the store.
const MaxSourceFilterLength = 255

// VectorSearcher performs similarity search over stored documents.
type VectorSearcher interface {
	SearchDocuments(ctx context.Context, query string, matchCount int, sourceFilter string) ([]SearchHit, error)
}

// KeywordSearcher performs substring keyword search over stored documents.
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, query string, matchCount int, sourceFilter string) ([]SearchHit, error)
}

// Request describes one RAG query.
type Request struct {
	Query        string
	SourceFilter string
	MatchCount   int
	Hybrid       bool
	Rerank       bool
}

// Result is the outcome of one RAG query. Degradations are recorded
// rather than surfaced as errors.
type Result struct {
	Hits []SearchHit
	// SearchMode is "hybrid" or "vector".
	SearchMode string
	// Reranked reports whether the reranker's order was applied.
	Reranked bool
	// Degraded lists backends that timed out or failed and were
	// treated as returning no results.
	Degraded []string
	// ProcessingTime is the total wall-clock duration of the query.
	ProcessingTime time.Duration
}

// Engine orchestrates vector search, keyword search, fusion, and
// reranking behind a single Query call.
type Engine struct {
	vector   VectorSearcher
	keyword  KeywordSearcher
	reranker Reranker
	logger   *slog.Logger
}

// NewEngine creates a query engine. The reranker may be nil, in which
// case rerank requests are ignored.
func NewEngine(vector VectorSearcher, keyword KeywordSearcher, reranker Reranker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		vector:   vector,
		keyword:  keyword,
		reranker: reranker,
		logger:   logger,
	}
}

// Query runs one RAG query end to end.
//
// The query text must be non-empty. An out-of-range match count is
// clamped into [1, MaxMatchCount] rather than rejected; the HTTP layer
// applies stricter validation of its own before calling here.
//
// In hybrid mode both backends run concurrently under separate timeout
// budgets and either may degrade to empty results; the query only fails
// when both do. In vector-only mode a backend failure fails the query.
// A reranker failure never fails the query; the fused order is kept.
func (e *Engine) Query(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, errors.ValidationCode(errors.ErrCodeQueryEmpty, "query cannot be empty")
	}
	if len(req.SourceFilter) > MaxSourceFilterLength {
		return nil, errors.ValidationCode(errors.ErrCodeSourceFilterLong,
			"source filter exceeds the maximum length")
	}

	matchCount := req.MatchCount
	if matchCount < 1 {
		matchCount = DefaultMatchCount
	} else if matchCount > MaxMatchCount {
		matchCount = MaxMatchCount
	}

	res := &Result{SearchMode: "vector"}

	var hits []SearchHit
	if req.Hybrid && e.keyword != nil {
		res.SearchMode = "hybrid"
		fused, degraded, err := e.hybridSearch(ctx, req.Query, req.SourceFilter, matchCount)
		if err != nil {
			return nil, err
		}
		hits = fused
		res.Degraded = degraded
	} else {
		found, err := e.vectorOnly(ctx, req.Query, req.SourceFilter, matchCount)
		if err != nil {
			return nil, err
		}
		hits = found
	}

	if req.Rerank && e.reranker != nil && len(hits) > 0 {
		reranked, ok := e.tryRerank(ctx, req.Query, hits)
		hits = reranked
		res.Reranked = ok
	}

	res.Hits = hits
	res.ProcessingTime = time.Since(start)

	e.logger.Debug("query completed",
		slog.String("mode", res.SearchMode),
		slog.Int("results", len(hits)),
		slog.Bool("reranked", res.Reranked),
		slog.Duration("elapsed", res.ProcessingTime))

	return res, nil
}

// hybridSearch runs vector and keyword search concurrently and fuses
// the outcomes. Each backend fetches double the requested count so the
// fusion passes have room to work with.
func (e *Engine) hybridSearch(ctx context.Context, query, sourceFilter string, matchCount int) ([]SearchHit, []string, error) {
	var (
		vectorHits  []SearchHit
		keywordHits []SearchHit
		vectorErr   error
		keywordErr  error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vctx, cancel := context.WithTimeout(gctx, vectorSearchTimeout)
		defer cancel()
		vectorHits, vectorErr = e.vector.SearchDocuments(vctx, query, matchCount*2, sourceFilter)
		return nil
	})

	g.Go(func() error {
		kctx, cancel := context.WithTimeout(gctx, keywordSearchTimeout)
		defer cancel()
		keywordHits, keywordErr = e.keyword.SearchKeyword(kctx, query, matchCount*2, sourceFilter)
		return nil
	})

	// Goroutines never return errors; degradation is handled below.
	_ = g.Wait()

	var degraded []string
	if vectorErr != nil {
		e.logger.Warn("vector search degraded to empty results",
			slog.String("error", vectorErr.Error()))
		vectorHits = nil
		degraded = append(degraded, "vector")
	}
	if keywordErr != nil {
		e.logger.Warn("keyword search degraded to empty results",
			slog.String("error", keywordErr.Error()))
		keywordHits = nil
		degraded = append(degraded, "keyword")
	}

	if vectorErr != nil && keywordErr != nil {
		return nil, degraded, errors.New(errors.ErrCodeAllBackendsLost,
			"both vector and keyword search failed", vectorErr)
	}

	fused, err := FuseResults(vectorHits, keywordHits, matchCount)
	if err != nil {
		return nil, degraded, err
	}
	return fused, degraded, nil
}

func (e *Engine) vectorOnly(ctx context.Context, query, sourceFilter string, matchCount int) ([]SearchHit, error) {
	vctx, cancel := context.WithTimeout(ctx, vectorOnlyTimeout)
	defer cancel()

	hits, err := e.vector.SearchDocuments(vctx, query, matchCount, sourceFilter)
	if err != nil {
		if vctx.Err() == context.DeadlineExceeded {
			return nil, errors.BackendTimeout("vector", err)
		}
		return nil, errors.New(errors.ErrCodeBackendQuery, "vector search failed", err)
	}
	return hits, nil
}

// tryRerank applies the reranker under its budget. On any failure the
// fused order is returned unchanged, with ok=false.
func (e *Engine) tryRerank(ctx context.Context, query string, hits []SearchHit) ([]SearchHit, bool) {
	rctx, cancel := context.WithTimeout(ctx, rerankTimeout)
	defer cancel()

	reranked, err := e.reranker.Rerank(rctx, query, hits)
	if err != nil {
		e.logger.Warn("reranking failed, keeping fused order",
			slog.String("error", err.Error()))
		return hits, false
	}
	return reranked, true
}
