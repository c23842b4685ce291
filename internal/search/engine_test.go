package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brerrors "github.com/crawlbridge/crawlbridge/internal/errors"
)

type fakeVector struct {
	hits      []SearchHit
	err       error
	gotCount  int
	gotFilter string
}

func (f *fakeVector) SearchDocuments(_ context.Context, _ string, matchCount int, sourceFilter string) ([]SearchHit, error) {
	f.gotCount = matchCount
	f.gotFilter = sourceFilter
	return f.hits, f.err
}

type fakeKeyword struct {
	hits []SearchHit
	err  error
}

func (f *fakeKeyword) SearchKeyword(_ context.Context, _ string, _ int, _ string) ([]SearchHit, error) {
	return f.hits, f.err
}

type fakeReranker struct {
	out []SearchHit
	err error
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, hits []SearchHit) ([]SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func (f *fakeReranker) Available(_ context.Context) bool { return true }
func (f *fakeReranker) Close() error                     { return nil }

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestEngine_EmptyQueryRejected(t *testing.T) {
	e := NewEngine(&fakeVector{}, nil, nil, discard())

	_, err := e.Query(context.Background(), Request{Query: ""})

	require.Error(t, err)
	assert.True(t, brerrors.IsValidation(err))
	assert.Equal(t, brerrors.ErrCodeQueryEmpty, brerrors.GetCode(err))
}

func TestEngine_SourceFilterTooLongRejected(t *testing.T) {
	e := NewEngine(&fakeVector{}, nil, nil, discard())

	_, err := e.Query(context.Background(), Request{
		Query:        "q",
		SourceFilter: strings.Repeat("a", MaxSourceFilterLength+1),
	})

	require.Error(t, err)
	assert.True(t, brerrors.IsValidation(err))
	assert.Equal(t, brerrors.ErrCodeSourceFilterLong, brerrors.GetCode(err))
}

func TestEngine_VectorOnly(t *testing.T) {
	vec := &fakeVector{hits: []SearchHit{vhit("1", 0.9)}}
	e := NewEngine(vec, nil, nil, discard())

	res, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 5})

	require.NoError(t, err)
	assert.Equal(t, "vector", res.SearchMode)
	assert.False(t, res.Reranked)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 5, vec.gotCount)
}

func TestEngine_VectorOnlyFailureIsHard(t *testing.T) {
	vec := &fakeVector{err: errors.New("connection refused")}
	e := NewEngine(vec, nil, nil, discard())

	_, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 5})

	require.Error(t, err)
	assert.Equal(t, brerrors.ErrCodeBackendQuery, brerrors.GetCode(err))
}

func TestEngine_MatchCountClamped(t *testing.T) {
	vec := &fakeVector{}
	e := NewEngine(vec, nil, nil, discard())

	_, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxMatchCount, vec.gotCount)

	_, err = e.Query(context.Background(), Request{Query: "q", MatchCount: -3})
	require.NoError(t, err)
	assert.Equal(t, DefaultMatchCount, vec.gotCount)
}

func TestEngine_SourceFilterForwarded(t *testing.T) {
	vec := &fakeVector{}
	e := NewEngine(vec, nil, nil, discard())

	_, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 5, SourceFilter: "docs.example.com"})

	require.NoError(t, err)
	assert.Equal(t, "docs.example.com", vec.gotFilter)
}

func TestEngine_HybridFusesBothBackends(t *testing.T) {
	vec := &fakeVector{hits: []SearchHit{vhit("1", 0.8), vhit("2", 0.6)}}
	kw := &fakeKeyword{hits: []SearchHit{khit("1"), khit("3")}}
	e := NewEngine(vec, kw, nil, discard())

	res, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 3, Hybrid: true})

	require.NoError(t, err)
	assert.Equal(t, "hybrid", res.SearchMode)
	assert.Empty(t, res.Degraded)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, "1", res.Hits[0].ID)
	assert.InDelta(t, 0.96, res.Hits[0].Similarity, 1e-9)
	// Hybrid over-fetches to give fusion room to work with.
	assert.Equal(t, 6, vec.gotCount)
}

func TestEngine_HybridDegradesOneFailedBackend(t *testing.T) {
	vec := &fakeVector{hits: []SearchHit{vhit("1", 0.8)}}
	kw := &fakeKeyword{err: errors.New("timeout")}
	e := NewEngine(vec, kw, nil, discard())

	res, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 3, Hybrid: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"keyword"}, res.Degraded)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "1", res.Hits[0].ID)
}

func TestEngine_HybridFailsWhenAllBackendsFail(t *testing.T) {
	vec := &fakeVector{err: errors.New("down")}
	kw := &fakeKeyword{err: errors.New("also down")}
	e := NewEngine(vec, kw, nil, discard())

	_, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 3, Hybrid: true})

	require.Error(t, err)
	assert.Equal(t, brerrors.ErrCodeAllBackendsLost, brerrors.GetCode(err))
}

func TestEngine_HybridBothEmptyIsSuccess(t *testing.T) {
	e := NewEngine(&fakeVector{}, &fakeKeyword{}, nil, discard())

	res, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 3, Hybrid: true})

	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestEngine_RerankApplied(t *testing.T) {
	vec := &fakeVector{hits: []SearchHit{vhit("1", 0.9), vhit("2", 0.8)}}
	rr := &fakeReranker{out: []SearchHit{vhit("2", 0.8), vhit("1", 0.9)}}
	e := NewEngine(vec, nil, rr, discard())

	res, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 5, Rerank: true})

	require.NoError(t, err)
	assert.True(t, res.Reranked)
	assert.Equal(t, "2", res.Hits[0].ID)
}

func TestEngine_RerankFailureKeepsFusedOrder(t *testing.T) {
	vec := &fakeVector{hits: []SearchHit{vhit("1", 0.9), vhit("2", 0.8)}}
	rr := &fakeReranker{err: errors.New("model unavailable")}
	e := NewEngine(vec, nil, rr, discard())

	res, err := e.Query(context.Background(), Request{Query: "q", MatchCount: 5, Rerank: true})

	require.NoError(t, err)
	assert.False(t, res.Reranked)
	assert.Equal(t, "1", res.Hits[0].ID)
	assert.Equal(t, "2", res.Hits[1].ID)
}
