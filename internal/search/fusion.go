package search

import (
	"log/slog"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// IntersectionBoost is applied to the similarity of hits found by both
// backends. The boosted value is clamped to 1.0.
const IntersectionBoost = 1.2

// KeywordOnlySimilarity is assigned to hits found only by keyword
// search, which has no vector score of its own.
const KeywordOnlySimilarity = 0.5

// FuseResults merges vector and keyword search results into a single
// ranked list of at most matchCount hits.
//
// Three passes run in order until the cap is reached:
//
//  1. Intersection: every keyword hit whose id also appears among the
//     vector hits contributes the vector hit's record with its
//     similarity boosted. Hits found by both methods therefore always
//     outrank single-method hits.
//  2. Vector-only: remaining vector hits in their given order.
//  3. Keyword-only: remaining keyword hits in their given order, with
//     KeywordOnlySimilarity standing in for the missing vector score.
//
// Order within each pass is stable and no id appears twice. Empty
// inputs produce an empty slice, not an error. Individual malformed
// hits are skipped and logged rather than aborting the merge; only a
// non-empty input whose every hit is malformed fails, since returning
// an empty success there would hide a broken backend.
func FuseResults(vector, keyword []SearchHit, matchCount int) ([]SearchHit, error) {
	if matchCount <= 0 {
		return []SearchHit{}, nil
	}

	received := len(vector) + len(keyword)
	vector = dropMalformed(vector, "vector")
	keyword = dropMalformed(keyword, "keyword")
	if received > 0 && len(vector)+len(keyword) == 0 {
		return nil, errors.MalformedHit("every search hit was malformed")
	}

	seen := make(map[string]bool, len(vector)+len(keyword))
	fused := make([]SearchHit, 0, matchCount)

	vectorByID := make(map[string]SearchHit, len(vector))
	for _, h := range vector {
		if _, ok := vectorByID[h.ID]; !ok {
			vectorByID[h.ID] = h
		}
	}

	// Pass 1: hits found by both methods, keeping the vector record
	// for its metadata and similarity basis.
	for _, kh := range keyword {
		vh, inBoth := vectorByID[kh.ID]
		if !inBoth || seen[kh.ID] {
			continue
		}
		vh.Similarity = clampSimilarity(vh.Similarity * IntersectionBoost)
		fused = append(fused, vh)
		seen[kh.ID] = true
	}

	// Pass 2: vector-only hits in source order.
	for _, vh := range vector {
		if len(fused) >= matchCount {
			break
		}
		if seen[vh.ID] {
			continue
		}
		fused = append(fused, vh)
		seen[vh.ID] = true
	}

	// Pass 3: keyword-only hits in source order.
	for _, kh := range keyword {
		if len(fused) >= matchCount {
			break
		}
		if seen[kh.ID] {
			continue
		}
		kh.Similarity = KeywordOnlySimilarity
		fused = append(fused, kh)
		seen[kh.ID] = true
	}

	// The passes already respect the cap; this is a safety net for
	// pass 1, which intentionally collects every intersection hit.
	if len(fused) > matchCount {
		fused = fused[:matchCount]
	}

	return fused, nil
}

func dropMalformed(hits []SearchHit, source string) []SearchHit {
	valid := hits[:0:0]
	for _, h := range hits {
		if err := CheckHit(h); err != nil {
			slog.Warn("skipping malformed search hit",
				slog.String("source", source),
				slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, h)
	}
	return valid
}

func clampSimilarity(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}
