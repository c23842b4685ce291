// Package websearch queries a SearXNG metasearch instance for URLs to
// feed the crawl pipeline.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/pkg/version"
)

// DefaultNumResults is requested when the caller does not specify a count.
const DefaultNumResults = 6

// DefaultTimeout bounds one search request.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// Endpoint is the base URL of the SearXNG instance.
	Endpoint string
	// UserAgent identifies this client to the instance. SearXNG
	// rejects requests without one.
	UserAgent string
	// Engines optionally restricts which search engines SearXNG
	// queries, comma separated.
	Engines string
	// Timeout bounds one search request.
	Timeout time.Duration
}

// Client talks to the SearXNG JSON search API.
type Client struct {
	client    *http.Client
	endpoint  string
	userAgent string
	engines   string
	timeout   time.Duration
}

// NewClient creates a search client for the given instance.
func NewClient(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crawlbridge/" + version.Version
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:    &http.Client{},
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		userAgent: cfg.UserAgent,
		engines:   cfg.Engines,
		timeout:   cfg.Timeout,
	}
}

type searchResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// Search returns up to numResults result URLs for the query. Results
// without an absolute http(s) URL are dropped.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]string, error) {
	if numResults <= 0 {
		numResults = DefaultNumResults
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{
		"q":          {query},
		"format":     {"json"},
		"categories": {"general"},
		"limit":      {fmt.Sprint(numResults)},
	}
	if c.engines != "" {
		params.Set("engines", c.engines)
	}

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, c.endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Internal("failed to build search request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.ExternalService(errors.ErrCodeWebSearch,
			fmt.Sprintf("cannot reach search instance at %s", c.endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ExternalService(errors.ErrCodeWebSearch,
			fmt.Sprintf("search instance returned status %d", resp.StatusCode), nil)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.ExternalService(errors.ErrCodeWebSearch,
			"invalid JSON response from search instance", err)
	}

	urls := make([]string, 0, numResults)
	for _, r := range parsed.Results {
		u := strings.TrimSpace(r.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		urls = append(urls, u)
		if len(urls) == numResults {
			break
		}
	}

	return urls, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
