package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// Reranker reorders fused results using a cross-encoder model.
// Cross-encoders jointly encode query-document pairs for more accurate
// relevance scoring than bi-encoders, at higher computational cost.
type Reranker interface {
	// Rerank scores hits against the query and returns them sorted by
	// score descending. The returned hits carry a "rerank_score" entry
	// in their metadata.
	Rerank(ctx context.Context, query string, hits []SearchHit) ([]SearchHit, error)

	// Available checks if the reranker service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker returns hits in their original order.
// Used when reranking is disabled or unavailable.
type NoOpReranker struct{}

// Rerank returns the hits unchanged.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, hits []SearchHit) ([]SearchHit, error) {
	return hits, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error {
	return nil
}

var _ Reranker = (*NoOpReranker)(nil)

// HTTPReranker scores query-document pairs against a remote
// cross-encoder service.
type HTTPReranker struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTPReranker creates a reranker talking to a cross-encoder service
// at the given endpoint.
func NewHTTPReranker(endpoint, model string) *HTTPReranker {
	return &HTTPReranker{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank posts the query and document contents to the cross-encoder
// service and reorders hits by the returned scores, descending. Ties
// keep their pre-rerank order.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, hits []SearchHit) ([]SearchHit, error) {
	if len(hits) == 0 {
		return hits, nil
	}

	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Content
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
	})
	if err != nil {
		return nil, errors.Internal("failed to encode rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal("failed to build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeRerankFailed, "rerank request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.ErrCodeRerankFailed,
			fmt.Sprintf("reranker returned status %d: %s", resp.StatusCode, b), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeRerankFailed, "failed to decode rerank response", err)
	}
	if len(parsed.Scores) != len(hits) {
		return nil, errors.New(errors.ErrCodeRerankFailed,
			fmt.Sprintf("reranker returned %d scores for %d documents", len(parsed.Scores), len(hits)), nil)
	}

	reranked := make([]SearchHit, len(hits))
	copy(reranked, hits)
	for i := range reranked {
		meta := make(map[string]any, len(reranked[i].Metadata)+1)
		for k, v := range reranked[i].Metadata {
			meta[k] = v
		}
		meta["rerank_score"] = parsed.Scores[i]
		reranked[i].Metadata = meta
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Metadata["rerank_score"].(float64) > reranked[j].Metadata["rerank_score"].(float64)
	})

	return reranked, nil
}

// Available checks the service health endpoint.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Reranker = (*HTTPReranker)(nil)
