package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent bounds parallel sessions when the caller does
// not specify a limit.
const DefaultMaxConcurrent = 10

// HTTPCrawler talks to a headless crawler service that renders pages
// and returns markdown plus discovered links.
type HTTPCrawler struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

var _ Crawler = (*HTTPCrawler)(nil)

// NewHTTPCrawler creates a crawler client for the service at endpoint.
func NewHTTPCrawler(endpoint string, timeout time.Duration) *HTTPCrawler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCrawler{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		endpoint: endpoint,
		timeout:  timeout,
	}
}

type crawlRequest struct {
	URL string `json:"url"`
}

type crawlResponse struct {
	Success  bool   `json:"success"`
	Markdown string `json:"markdown"`
	Links    struct {
		Internal []struct {
			Href string `json:"href"`
		} `json:"internal"`
	} `json:"links"`
	Error string `json:"error_message"`
}

// CrawlOne fetches a single URL through the crawler service.
func (c *HTTPCrawler) CrawlOne(ctx context.Context, url string) Page {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(crawlRequest{URL: url})
	if err != nil {
		return failedPage(url, err.Error())
	}

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.endpoint+"/crawl", bytes.NewReader(body))
	if err != nil {
		return failedPage(url, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return failedPage(url, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return failedPage(url, fmt.Sprintf("crawler returned status %d: %s", resp.StatusCode, b))
	}

	var parsed crawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return failedPage(url, "failed to decode crawler response: "+err.Error())
	}
	if !parsed.Success || parsed.Markdown == "" {
		msg := parsed.Error
		if msg == "" {
			msg = "no content returned"
		}
		return failedPage(url, msg)
	}

	links := make([]string, 0, len(parsed.Links.Internal))
	for _, l := range parsed.Links.Internal {
		links = append(links, l.Href)
	}

	return Page{URL: url, Markdown: parsed.Markdown, Links: links, Success: true}
}

// CrawlMany fetches URLs in parallel, bounded by maxConcurrent.
func (c *HTTPCrawler) CrawlMany(ctx context.Context, urls []string, maxConcurrent int) []Page {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	pages := make([]Page, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				pages[i] = failedPage(url, err.Error())
				return
			}
			defer sem.Release(1)
			pages[i] = c.CrawlOne(ctx, url)
		}(i, url)
	}
	wg.Wait()

	return pages
}

func failedPage(url, msg string) Page {
	return Page{URL: url, Success: false, Error: msg}
}
