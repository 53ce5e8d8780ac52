package retrieval

import (
	"strings"
	"testing"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(source string, texts ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = domain.ScoredChunk{
			Chunk:  domain.Chunk{Text: text, SourceID: text + ".pdf"},
			Score:  1.0 / float64(i+1),
			Source: source,
		}
	}
	return out
}

func texts(chunks []domain.ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestFuseBothSources(t *testing.T) {
	f := NewFusion(0, 0, 0, 0)
	sem := RankedList{Source: domain.SourceSemantic, Results: results(domain.SourceSemantic, "A", "B", "C")}
	kw := RankedList{Source: domain.SourceKeyword, Results: results(domain.SourceKeyword, "B", "D")}

	out := f.Fuse([]RankedList{sem, kw}, 10)
	require.Len(t, out, 4)
	assert.Equal(t, []string{"B", "A", "C", "D"}, texts(out))
	assert.Equal(t, 1.0, out[0].Score)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Equal(t, domain.SourceHybrid, r.Source)
	}

	expectedA := (0.6 / 61) / (0.6/62 + 0.4/61)
	assert.InDelta(t, expectedA, out[1].Score, 1e-12)
}

func TestFuseIgnoresListOrder(t *testing.T) {
	f := NewFusion(60, 0.6, 0.4, 10)
	sem := RankedList{Source: domain.SourceSemantic, Results: results(domain.SourceSemantic, "A", "B", "C")}
	kw := RankedList{Source: domain.SourceKeyword, Results: results(domain.SourceKeyword, "C", "B", "A")}

	assert.Equal(t, f.Fuse([]RankedList{sem, kw}, 5), f.Fuse([]RankedList{kw, sem}, 5))
}

func TestFuseDeduplicatesByPrefix(t *testing.T) {
	f := NewFusion(60, 0.6, 0.4, 10)
	prefix := strings.Repeat("x", domain.ChunkKeyLength)
	sem := RankedList{Source: domain.SourceSemantic, Results: results(domain.SourceSemantic, prefix+" tail one")}
	kw := RankedList{Source: domain.SourceKeyword, Results: results(domain.SourceKeyword, prefix+" tail two", "other")}

	out := f.Fuse([]RankedList{sem, kw}, 5)
	require.Len(t, out, 2)
	assert.Equal(t, prefix+" tail one", out[0].Text)
}

func TestFuseSemanticOnlyClamps(t *testing.T) {
	f := NewFusion(60, 0.6, 0.4, 10)
	sem := RankedList{Source: domain.SourceSemantic, Results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{Text: "a"}, Score: 1.3},
		{Chunk: domain.Chunk{Text: "b"}, Score: 0.5},
		{Chunk: domain.Chunk{Text: "c"}, Score: -0.1},
	}}

	out := f.Fuse([]RankedList{sem, {Source: domain.SourceKeyword}}, 5)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{1, 0.5, 0}, []float64{out[0].Score, out[1].Score, out[2].Score})
	assert.Equal(t, domain.SourceSemantic, out[0].Source)
}

func TestFuseKeywordOnlyDivides(t *testing.T) {
	f := NewFusion(60, 0.6, 0.4, 10)
	kw := RankedList{Source: domain.SourceKeyword, Results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{Text: "a"}, Score: 25},
		{Chunk: domain.Chunk{Text: "b"}, Score: 5},
	}}

	out := f.Fuse([]RankedList{kw}, 5)
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, 0.5, out[1].Score)
}

func TestFuseEmpty(t *testing.T) {
	out := NewFusion(60, 0.6, 0.4, 10).Fuse(nil, 5)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestFuseLimit(t *testing.T) {
	f := NewFusion(60, 0.6, 0.4, 10)
	sem := RankedList{Source: domain.SourceSemantic, Results: results(domain.SourceSemantic, "A", "B", "C")}
	kw := RankedList{Source: domain.SourceKeyword, Results: results(domain.SourceKeyword, "D", "E")}

	out := f.Fuse([]RankedList{sem, kw}, 2)
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].Score)
}
