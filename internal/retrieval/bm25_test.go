package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBM25Scores(t *testing.T) {
	m := NewBM25([][]string{
		{"tourism", "growth"},
		{"energy", "sector"},
		{"transport", "plan"},
	})

	scores := m.Scores([]string{"tourism"})
	idf := math.Log(2.5) - math.Log(1.5)
	assert.InDelta(t, idf, scores[0], 1e-9)
	assert.Zero(t, scores[1])
	assert.Zero(t, scores[2])

	assert.Equal(t, []float64{0, 0, 0}, m.Scores([]string{"unknown"}))

	best, score := m.Best([]string{"energy", "energy"})
	assert.Equal(t, 1, best)
	assert.InDelta(t, 2*idf, score, 1e-9)
}

func TestBM25NegativeIDFFloor(t *testing.T) {
	m := NewBM25([][]string{{"the", "a"}, {"the", "b"}, {"the", "c"}})

	rare := math.Log(2.5) - math.Log(1.5)
	common := math.Log(0.5) - math.Log(3.5)
	eps := BM25Epsilon * (3*rare + common) / 4

	assert.InDelta(t, eps, m.idf["the"], 1e-12)
	assert.InDelta(t, rare, m.idf["a"], 1e-12)
}

func TestBM25EmptyCorpus(t *testing.T) {
	m := NewBM25(nil)
	assert.Empty(t, m.Scores([]string{"x"}))
	best, _ := m.Best([]string{"x"})
	assert.Equal(t, -1, best)
}
