// Package retrieval implements keyword search, rank fusion and the hybrid
// retriever combining keyword and semantic search.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/metrics"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// Searcher is a single retrieval source
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error)
}

// HybridOptions configures a Hybrid retriever
type HybridOptions struct {
	MaxDocs         int
	SemanticTimeout time.Duration
	KeywordTimeout  time.Duration
}

// Hybrid runs semantic and keyword search concurrently and fuses the results.
// A failing or timed out source is treated as returning nothing.
type Hybrid struct {
	semantic Searcher
	keyword  Searcher
	fusion   *Fusion
	opts     HybridOptions
	logger   *zap.Logger
}

// NewHybrid creates a hybrid retriever. Either searcher may be nil.
func NewHybrid(semantic, keyword Searcher, fusion *Fusion, opts HybridOptions, logger *zap.Logger) *Hybrid {
	if opts.MaxDocs <= 0 {
		opts.MaxDocs = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hybrid{semantic: semantic, keyword: keyword, fusion: fusion, opts: opts, logger: logger}
}

// Retrieve returns at most MaxDocs fused results for query, best first.
// Source failures degrade to empty lists; it only fails when ctx itself is done.
func (h *Hybrid) Retrieve(ctx context.Context, query string) ([]domain.ScoredChunk, error) {
	var (
		semantic, keyword       []domain.ScoredChunk
		semanticErr, keywordErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic, semanticErr = h.search(gctx, h.semantic, query, h.opts.SemanticTimeout)
		return ctx.Err()
	})
	g.Go(func() error {
		keyword, keywordErr = h.search(gctx, h.keyword, query, h.opts.KeywordTimeout)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if semanticErr != nil && keywordErr != nil {
		h.logger.Warn("all retrieval sources unavailable",
			zap.String("query", textutil.Truncate(query, 80)),
			zap.Error(multierror.Append(semanticErr, keywordErr)))
	}

	return h.fusion.Fuse([]RankedList{
		{Source: domain.SourceSemantic, Results: semantic},
		{Source: domain.SourceKeyword, Results: keyword},
	}, h.opts.MaxDocs), nil
}

func (h *Hybrid) search(ctx context.Context, s Searcher, query string, timeout time.Duration) ([]domain.ScoredChunk, error) {
	if s == nil {
		return nil, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := s.Search(ctx, query, h.opts.MaxDocs)
	metrics.ObserveRetriever(s.Name(), start, len(results), err)
	if err != nil {
		h.logger.Warn("retrieval source unavailable",
			zap.String("source", s.Name()),
			zap.String("query", textutil.Truncate(query, 80)),
			zap.Error(err))
		return nil, fmt.Errorf("%s search: %w", s.Name(), err)
	}
	return results, nil
}
