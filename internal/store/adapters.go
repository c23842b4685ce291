package store

import (
	"context"

	"github.com/crawlbridge/crawlbridge/internal/search"
)

// CodeExampleBackend exposes the code example tables through the search
// engine's backend interfaces, so one engine implementation serves both
// document and code example queries.
type CodeExampleBackend struct {
	Store DocumentStore
}

var (
	_ search.VectorSearcher  = CodeExampleBackend{}
	_ search.KeywordSearcher = CodeExampleBackend{}
)

func (b CodeExampleBackend) SearchDocuments(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error) {
	return b.Store.SearchCodeExamples(ctx, query, matchCount, sourceFilter)
}

func (b CodeExampleBackend) SearchKeyword(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error) {
	return b.Store.SearchCodeExamplesKeyword(ctx, query, matchCount, sourceFilter)
}
