package crawl

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// IsSitemap reports whether a URL points at a sitemap.
func IsSitemap(rawURL string) bool {
	if strings.HasSuffix(rawURL, "sitemap.xml") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "sitemap")
}

// IsTxt reports whether a URL points at a plain text file, such as an
// llms.txt index.
func IsTxt(rawURL string) bool {
	return strings.HasSuffix(rawURL, ".txt")
}

type sitemapIndex struct {
	Locs []string `xml:"url>loc"`
	// Nested sitemap indexes list their children under sitemap>loc.
	Children []string `xml:"sitemap>loc"`
}

// ParseSitemap fetches a sitemap and extracts every <loc> URL. A
// sitemap index yields its child sitemap URLs rather than recursing.
func ParseSitemap(ctx context.Context, client *http.Client, sitemapURL string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSitemapFetch, "invalid sitemap URL", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSitemapFetch, "failed to fetch sitemap", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeSitemapFetch,
			fmt.Sprintf("sitemap fetch returned status %d", resp.StatusCode), nil)
	}

	var parsed sitemapIndex
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeSitemapFetch, "failed to parse sitemap XML", err)
	}

	urls := make([]string, 0, len(parsed.Locs)+len(parsed.Children))
	for _, loc := range parsed.Locs {
		if t := strings.TrimSpace(loc); t != "" {
			urls = append(urls, t)
		}
	}
	for _, loc := range parsed.Children {
		if t := strings.TrimSpace(loc); t != "" {
			urls = append(urls, t)
		}
	}

	return urls, nil
}

// NormalizeURL strips the fragment so recursive crawls treat anchor
// variants as the same page.
func NormalizeURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i != -1 {
		return rawURL[:i]
	}
	return rawURL
}

// SourceID derives the source identifier (the host) from a URL,
// falling back to the path for scheme-less inputs.
func SourceID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host != "" {
		return u.Host
	}
	return u.Path
}
