// Package search provides hybrid retrieval for crawled documentation:
// vector and keyword results are merged by a boost-based fusion policy,
// optionally reordered by a cross-encoder reranker.
package search

import (
	"math"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// SearchHit is one candidate result from a search backend.
// The fusion engine may adjust Similarity but never Content or ID.
type SearchHit struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	ChunkNumber int            `json:"chunk_number"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	SourceID    string         `json:"source_id"`
	// Similarity is 0.0 to 1.0, higher is more relevant.
	Similarity float64 `json:"similarity"`
}

// CheckHit reports whether a hit carries the fields fusion depends on.
// Backends occasionally return rows with a missing id or a non-finite
// similarity; such hits are skipped rather than aborting the merge.
func CheckHit(h SearchHit) error {
	if h.ID == "" {
		return errors.MalformedHit("search hit missing id")
	}
	if math.IsNaN(h.Similarity) || math.IsInf(h.Similarity, 0) {
		return errors.MalformedHit("search hit has non-finite similarity").
			WithDetail("id", h.ID)
	}
	return nil
}
