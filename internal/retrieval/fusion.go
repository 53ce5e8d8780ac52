package retrieval

import (
	"sort"

	"github.com/liliang-cn/askdesk/internal/domain"
)

// Fusion defaults
const (
	DefaultRRFK           = 60
	DefaultSemanticWeight = 0.6
	DefaultKeywordWeight  = 0.4
	// DefaultKeywordDivisor maps raw BM25 scores into [0,1] when keyword
	// search is the only source. Empirical.
	DefaultKeywordDivisor = 10.0
)

// RankedList is the ordered output of one retrieval source
type RankedList struct {
	Source  string
	Results []domain.ScoredChunk
}

// Fusion merges ranked lists with weighted reciprocal rank fusion.
// The fused score is normalized so the best result scores exactly 1.0.
type Fusion struct {
	K              int
	Weights        map[string]float64
	KeywordDivisor float64
}

// NewFusion creates a fusion engine; non-positive arguments fall back to defaults
func NewFusion(k int, semanticWeight, keywordWeight, keywordDivisor float64) *Fusion {
	if k <= 0 {
		k = DefaultRRFK
	}
	if semanticWeight <= 0 && keywordWeight <= 0 {
		semanticWeight, keywordWeight = DefaultSemanticWeight, DefaultKeywordWeight
	}
	if keywordDivisor <= 0 {
		keywordDivisor = DefaultKeywordDivisor
	}
	return &Fusion{
		K: k,
		Weights: map[string]float64{
			domain.SourceSemantic: semanticWeight,
			domain.SourceKeyword:  keywordWeight,
		},
		KeywordDivisor: keywordDivisor,
	}
}

type fused struct {
	chunk    domain.Chunk
	key      string
	score    float64
	bestRank int
}

// Fuse combines lists into at most limit results with scores in [0,1].
// The order of lists does not affect the output. When a single source has
// results its raw scores are mapped into [0,1] instead.
func (f *Fusion) Fuse(lists []RankedList, limit int) []domain.ScoredChunk {
	var present []RankedList
	for _, l := range lists {
		if len(l.Results) > 0 {
			present = append(present, l)
		}
	}

	switch len(present) {
	case 0:
		return []domain.ScoredChunk{}
	case 1:
		return f.degrade(present[0], limit)
	}

	// duplicate chunks keep the representation of the first source in this order
	sort.SliceStable(present, func(i, j int) bool {
		return sourceOrder(present[i].Source) < sourceOrder(present[j].Source)
	})

	byKey := make(map[string]*fused)
	for _, l := range present {
		w := f.Weights[l.Source]
		for rank, r := range l.Results {
			key := r.Chunk.Key()
			entry, ok := byKey[key]
			if !ok {
				entry = &fused{chunk: r.Chunk, key: key, bestRank: rank}
				byKey[key] = entry
			} else if rank < entry.bestRank {
				entry.bestRank = rank
			}
			entry.score += w / float64(f.K+rank+1)
		}
	}

	entries := make([]*fused, 0, len(byKey))
	for _, e := range byKey {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.key < b.key
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	top := entries[0].score
	out := make([]domain.ScoredChunk, len(entries))
	for i, e := range entries {
		score := e.score
		if top > 0 {
			score /= top
		}
		out[i] = domain.ScoredChunk{Chunk: e.chunk, Score: clamp(score), Source: domain.SourceHybrid}
	}
	return out
}

func (f *Fusion) degrade(l RankedList, limit int) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(l.Results))
	for i, r := range l.Results {
		score := r.Score
		if l.Source == domain.SourceKeyword {
			score /= f.KeywordDivisor
		}
		out[i] = domain.ScoredChunk{Chunk: r.Chunk, Score: clamp(score), Source: l.Source}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sourceOrder(source string) int {
	switch source {
	case domain.SourceSemantic:
		return 0
	case domain.SourceKeyword:
		return 1
	}
	return 2
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
