package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// HTTPEmbedder talks to an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	client   *http.Client
	endpoint string
	model    string
	dims     int
	timeout  time.Duration
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an embedder for the given service.
func NewHTTPEmbedder(cfg Config) *HTTPEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}

	return &HTTPEmbedder{
		// Per-request timeouts come from contexts so callers keep
		// control; the client itself stays unbounded.
		client:   &http.Client{Transport: transport},
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		timeout:  cfg.Timeout,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, errors.Internal("failed to encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, e.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Internal("failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.ExternalService(errors.ErrCodeBackendQuery, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.ExternalService(errors.ErrCodeBackendQuery,
			fmt.Sprintf("embedding service returned status %d: %s", resp.StatusCode, b), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.ExternalService(errors.ErrCodeBackendQuery, "failed to decode embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, errors.ExternalService(errors.ErrCodeBackendQuery,
			fmt.Sprintf("embedding service returned %d vectors for %d inputs", len(parsed.Data), len(texts)), nil)
	}

	// The service reports an index per vector; order by it rather than
	// trusting response order.
	vecs := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, errors.ExternalService(errors.ErrCodeBackendQuery,
				fmt.Sprintf("embedding service returned out-of-range index %d", d.Index), nil)
		}
		vecs[d.Index] = d.Embedding
	}

	return vecs, nil
}

// Dimensions returns the configured vector width.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dims
}

// Close releases idle connections.
func (e *HTTPEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
