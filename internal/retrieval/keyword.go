package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// KeywordIndex is a BM25 index over chunks persisted in the relational store.
// The scoring model is cached until the stored corpus changes, including
// rebuilds made by another process sharing the database.
type KeywordIndex struct {
	db *repository.DB

	mu      sync.RWMutex
	chunks  []domain.Chunk
	model   *BM25
	version corpusVersion
}

// corpusVersion changes on every rebuild since chunk ids are never reused
type corpusVersion struct {
	count int
	maxID int64
}

// NewKeywordIndex creates a keyword index on db
func NewKeywordIndex(db *repository.DB) *KeywordIndex {
	return &KeywordIndex{db: db}
}

// Name identifies the source
func (k *KeywordIndex) Name() string {
	return domain.SourceKeyword
}

// Rebuild replaces the whole corpus and returns the number of stored chunks
func (k *KeywordIndex) Rebuild(ctx context.Context, chunks []domain.Chunk) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.db.InTx(ctx, func(tx repository.Querier) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM keyword_chunks`); err != nil {
			return err
		}
		for _, c := range chunks {
			var page sql.NullInt64
			if c.Page != nil {
				page = sql.NullInt64{Int64: int64(*c.Page), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO keyword_chunks (text, source_id, page) VALUES (?, ?, ?)
			`, c.Text, c.SourceID, page); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild keyword index: %w", err)
	}

	k.chunks, k.model, k.version = nil, nil, corpusVersion{}
	return len(chunks), nil
}

// Count returns the number of indexed chunks
func (k *KeywordIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyword_chunks`).Scan(&n)
	return n, err
}

// Search returns up to topK chunks with a positive BM25 score, best first
func (k *KeywordIndex) Search(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	tokens := textutil.Tokenize(query)
	if len(tokens) == 0 || topK <= 0 {
		return nil, nil
	}

	chunks, model, err := k.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	scores := model.Scores(tokens)
	idx := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if len(idx) > topK {
		idx = idx[:topK]
	}

	results := make([]domain.ScoredChunk, len(idx))
	for i, j := range idx {
		results[i] = domain.ScoredChunk{Chunk: chunks[j], Score: scores[j], Source: domain.SourceKeyword}
	}
	return results, nil
}

func (k *KeywordIndex) currentVersion(ctx context.Context) (corpusVersion, error) {
	var v corpusVersion
	err := k.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(id), 0) FROM keyword_chunks`).Scan(&v.count, &v.maxID)
	if err != nil {
		return v, fmt.Errorf("failed to read keyword corpus version: %w", err)
	}
	return v, nil
}

func (k *KeywordIndex) load(ctx context.Context) ([]domain.Chunk, *BM25, error) {
	version, err := k.currentVersion(ctx)
	if err != nil {
		return nil, nil, err
	}

	k.mu.RLock()
	if k.model != nil && k.version == version {
		defer k.mu.RUnlock()
		return k.chunks, k.model, nil
	}
	k.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.model != nil && k.version == version {
		return k.chunks, k.model, nil
	}

	rows, err := k.db.QueryContext(ctx, `SELECT text, source_id, page FROM keyword_chunks ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load keyword corpus: %w", err)
	}
	defer rows.Close()

	var (
		chunks []domain.Chunk
		corpus [][]string
	)
	for rows.Next() {
		var (
			c    domain.Chunk
			page sql.NullInt64
		)
		if err := rows.Scan(&c.Text, &c.SourceID, &page); err != nil {
			return nil, nil, err
		}
		if page.Valid {
			p := int(page.Int64)
			c.Page = &p
		}
		chunks = append(chunks, c)
		corpus = append(corpus, textutil.Tokenize(c.Text))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// a rebuild racing with this read is picked up by the next search
	k.chunks, k.model, k.version = chunks, NewBM25(corpus), version
	return k.chunks, k.model, nil
}
