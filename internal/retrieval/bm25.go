package retrieval

import "math"

// BM25 parameters of the Okapi variant
const (
	BM25K1      = 1.5
	BM25B       = 0.75
	BM25Epsilon = 0.25
)

// BM25 is an Okapi BM25 model over a tokenized corpus. Terms with negative
// idf (present in more than half the documents) are floored at
// epsilon times the average idf.
type BM25 struct {
	docFreqs []map[string]int
	docLens  []int
	avgdl    float64
	idf      map[string]float64
}

// NewBM25 builds a model from tokenized documents
func NewBM25(corpus [][]string) *BM25 {
	m := &BM25{
		docFreqs: make([]map[string]int, len(corpus)),
		docLens:  make([]int, len(corpus)),
		idf:      make(map[string]float64),
	}

	nd := make(map[string]int)
	total := 0
	for i, doc := range corpus {
		freqs := make(map[string]int, len(doc))
		for _, tok := range doc {
			freqs[tok]++
		}
		for tok := range freqs {
			nd[tok]++
		}
		m.docFreqs[i] = freqs
		m.docLens[i] = len(doc)
		total += len(doc)
	}
	if len(corpus) > 0 {
		m.avgdl = float64(total) / float64(len(corpus))
	}

	n := float64(len(corpus))
	idfSum := 0.0
	var negative []string
	for tok, freq := range nd {
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		m.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(nd) > 0 {
		eps := BM25Epsilon * idfSum / float64(len(nd))
		for _, tok := range negative {
			m.idf[tok] = eps
		}
	}
	return m
}

// Len returns the number of documents
func (m *BM25) Len() int {
	return len(m.docLens)
}

// Scores returns the score of every document for the query tokens.
// Repeated query tokens count once per occurrence.
func (m *BM25) Scores(query []string) []float64 {
	scores := make([]float64, len(m.docLens))
	if m.avgdl == 0 {
		return scores
	}
	for _, q := range query {
		idf, ok := m.idf[q]
		if !ok {
			continue
		}
		for i, freqs := range m.docFreqs {
			f := float64(freqs[q])
			if f == 0 {
				continue
			}
			norm := BM25K1 * (1 - BM25B + BM25B*float64(m.docLens[i])/m.avgdl)
			scores[i] += idf * (f * (BM25K1 + 1) / (f + norm))
		}
	}
	return scores
}

// Best returns the index and score of the highest scoring document, or -1
// for an empty corpus. Ties keep the lowest index.
func (m *BM25) Best(query []string) (int, float64) {
	scores := m.Scores(query)
	best := -1
	bestScore := 0.0
	for i, s := range scores {
		if best == -1 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}
