package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

func vhit(id string, sim float64) SearchHit {
	return SearchHit{
		ID:         id,
		URL:        "https://example.com/" + id,
		Content:    "content " + id,
		Metadata:   map[string]any{"origin": "vector"},
		SourceID:   "example.com",
		Similarity: sim,
	}
}

func khit(id string) SearchHit {
	return SearchHit{
		ID:       id,
		URL:      "https://example.com/" + id,
		Content:  "content " + id,
		SourceID: "example.com",
	}
}

func TestFuseResults_BothEmpty(t *testing.T) {
	got, err := FuseResults(nil, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestFuseResults_IntersectionBoostedAndFirst(t *testing.T) {
	vector := []SearchHit{vhit("1", 0.8), vhit("2", 0.6)}
	keyword := []SearchHit{khit("1"), khit("3")}

	got, err := FuseResults(vector, keyword, 3)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID)
	assert.InDelta(t, 0.96, got[0].Similarity, 1e-9)
	// Intersection keeps the vector record, metadata included.
	assert.Equal(t, "vector", got[0].Metadata["origin"])

	assert.Equal(t, "2", got[1].ID)
	assert.InDelta(t, 0.6, got[1].Similarity, 1e-9)

	assert.Equal(t, "3", got[2].ID)
	assert.InDelta(t, KeywordOnlySimilarity, got[2].Similarity, 1e-9)
}

func TestFuseResults_BoostClampedToOne(t *testing.T) {
	vector := []SearchHit{vhit("1", 0.95)}
	keyword := []SearchHit{khit("1")}

	got, err := FuseResults(vector, keyword, 5)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Similarity)
}

func TestFuseResults_NoDuplicates(t *testing.T) {
	vector := []SearchHit{vhit("1", 0.9), vhit("2", 0.8)}
	keyword := []SearchHit{khit("2"), khit("2"), khit("1"), khit("3")}

	got, err := FuseResults(vector, keyword, 10)

	require.NoError(t, err)
	seen := map[string]bool{}
	for _, h := range got {
		assert.False(t, seen[h.ID], "duplicate id %s", h.ID)
		seen[h.ID] = true
	}
	assert.Len(t, got, 3)
}

func TestFuseResults_RespectsMatchCount(t *testing.T) {
	vector := []SearchHit{vhit("1", 0.9), vhit("2", 0.8), vhit("3", 0.7)}
	keyword := []SearchHit{khit("4"), khit("5")}

	got, err := FuseResults(vector, keyword, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestFuseResults_IntersectionMayExceedThenTruncates(t *testing.T) {
	// All three hits intersect; the cap still holds.
	vector := []SearchHit{vhit("1", 0.9), vhit("2", 0.8), vhit("3", 0.7)}
	keyword := []SearchHit{khit("1"), khit("2"), khit("3")}

	got, err := FuseResults(vector, keyword, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFuseResults_StableSourceOrder(t *testing.T) {
	vector := []SearchHit{vhit("a", 0.5), vhit("b", 0.9), vhit("c", 0.7)}

	got, err := FuseResults(vector, nil, 10)

	require.NoError(t, err)
	require.Len(t, got, 3)
	// Vector-only pass keeps the backend's order, not similarity order.
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestFuseResults_KeywordOnly(t *testing.T) {
	keyword := []SearchHit{khit("x"), khit("y")}

	got, err := FuseResults(nil, keyword, 5)

	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, h := range got {
		assert.Equal(t, KeywordOnlySimilarity, h.Similarity)
	}
}

func TestFuseResults_Deterministic(t *testing.T) {
	vector := []SearchHit{vhit("1", 0.8), vhit("2", 0.6), vhit("3", 0.4)}
	keyword := []SearchHit{khit("2"), khit("4")}

	first, err := FuseResults(vector, keyword, 4)
	require.NoError(t, err)
	second, err := FuseResults(vector, keyword, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFuseResults_SkipsMalformedHits(t *testing.T) {
	vector := []SearchHit{
		{ID: "", Similarity: 0.9},           // missing id
		{ID: "nan", Similarity: math.NaN()}, // non-finite similarity
		vhit("ok", 0.7),
	}
	keyword := []SearchHit{khit("ok")}

	got, err := FuseResults(vector, keyword, 5)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
	assert.InDelta(t, 0.84, got[0].Similarity, 1e-9)
}

func TestFuseResults_ZeroMatchCount(t *testing.T) {
	got, err := FuseResults([]SearchHit{vhit("1", 0.9)}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFuseResults_AllHitsMalformedFails(t *testing.T) {
	vector := []SearchHit{
		{ID: "", Similarity: 0.9},
		{ID: "inf", Similarity: math.Inf(1)},
	}
	keyword := []SearchHit{{ID: "", Similarity: 0.5}}

	got, err := FuseResults(vector, keyword, 5)

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, errors.ErrCodeMalformedHit, errors.GetCode(err))
}

func TestCheckHit(t *testing.T) {
	assert.NoError(t, CheckHit(vhit("1", 0.5)))
	assert.Error(t, CheckHit(SearchHit{ID: "", Similarity: 0.5}))
	assert.Error(t, CheckHit(SearchHit{ID: "1", Similarity: math.Inf(1)}))
	assert.Error(t, CheckHit(SearchHit{ID: "1", Similarity: math.NaN()}))
}
