package crawl

import (
	"context"
)

// CrawlRecursive crawls internal links breadth-first from the start
// URLs up to maxDepth levels. URLs are normalized (fragments stripped)
// and visited at most once; failed pages are marked visited so they are
// not retried at deeper levels. Only successful pages appear in the
// result.
func CrawlRecursive(ctx context.Context, crawler Crawler, startURLs []string, maxDepth, maxConcurrent int) []Page {
	visited := make(map[string]bool)

	current := make(map[string]bool, len(startURLs))
	for _, u := range startURLs {
		current[NormalizeURL(u)] = true
	}

	var results []Page
	for depth := 0; depth < maxDepth; depth++ {
		var toCrawl []string
		for u := range current {
			if !visited[u] {
				toCrawl = append(toCrawl, u)
			}
		}
		if len(toCrawl) == 0 {
			break
		}

		pages := crawler.CrawlMany(ctx, toCrawl, maxConcurrent)

		next := make(map[string]bool)
		for _, page := range pages {
			norm := NormalizeURL(page.URL)
			visited[norm] = true

			if !page.Success || page.Markdown == "" {
				continue
			}
			results = append(results, page)

			for _, link := range page.Links {
				if nl := NormalizeURL(link); !visited[nl] {
					next[nl] = true
				}
			}
		}
		current = next
	}

	return results
}
