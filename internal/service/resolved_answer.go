package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/retrieval"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// AnswerCache is an exact-match cache in front of the resolved answers table
type AnswerCache interface {
	Get(ctx context.Context, normalized string) (*domain.ResolvedAnswer, error)
	Set(ctx context.Context, ra *domain.ResolvedAnswer) error
}

// ResolvedAnswerService matches questions against human answers of resolved tickets
type ResolvedAnswerService struct {
	repo   *repository.ResolvedAnswerRepository
	cache  AnswerCache
	cfg    config.ResolvedConfig
	logger *zap.Logger
}

// NewResolvedAnswerService creates a new resolved answer service. cache may be nil.
func NewResolvedAnswerService(
	repo *repository.ResolvedAnswerRepository,
	cache AnswerCache,
	cfg config.ResolvedConfig,
	logger *zap.Logger,
) *ResolvedAnswerService {
	if cfg.FuzzyRatio <= 0 {
		cfg.FuzzyRatio = 0.92
	}
	if cfg.KeywordFloor <= 0 {
		cfg.KeywordFloor = 5.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolvedAnswerService{repo: repo, cache: cache, cfg: cfg, logger: logger}
}

// Find returns the stored answer for query, or nil when no stored question
// is close enough
func (s *ResolvedAnswerService) Find(ctx context.Context, query string) (*domain.ResolvedAnswer, error) {
	normalized := textutil.Normalize(query)
	if normalized == "" {
		return nil, nil
	}

	if s.cache != nil {
		ra, err := s.cache.Get(ctx, normalized)
		if err != nil {
			s.logger.Warn("resolved cache lookup failed", zap.Error(err))
		} else if ra != nil {
			return ra, nil
		}
	}

	exact, err := s.repo.FindByNormalized(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to look up resolved answer: %w", err)
	}
	if exact != nil {
		s.remember(ctx, exact)
		return exact, nil
	}

	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved answers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// rows stored before the current normalizer
	for _, r := range rows {
		if textutil.Normalize(r.Question) == normalized {
			return r, nil
		}
	}

	queryTokens := textutil.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	corpus := make([][]string, len(rows))
	for i, r := range rows {
		corpus[i] = textutil.Tokenize(r.Question)
	}
	best, score := retrieval.NewBM25(corpus).Best(queryTokens)
	if best < 0 {
		return nil, nil
	}

	candidate := rows[best]
	ratio := textutil.SimilarityRatio(normalized, textutil.Normalize(candidate.Question))
	if ratio >= s.cfg.FuzzyRatio || score >= s.cfg.KeywordFloor {
		s.logger.Debug("resolved answer matched",
			zap.String("ticket_id", candidate.TicketID),
			zap.Float64("ratio", ratio),
			zap.Float64("bm25", score))
		return candidate, nil
	}
	return nil, nil
}

// Upsert stores the human answer of a ticket, replacing any previous answer
// for the same ticket
func (s *ResolvedAnswerService) Upsert(
	ctx context.Context,
	ticketID, question, answer string,
	citations []domain.Citation,
) (*domain.ResolvedAnswer, error) {
	ra, err := s.store(ctx, s.repo, ticketID, question, answer, citations)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, ra)
	return ra, nil
}

// List returns every stored resolved answer
func (s *ResolvedAnswerService) List(ctx context.Context) ([]*domain.ResolvedAnswer, error) {
	return s.repo.List(ctx)
}

func (s *ResolvedAnswerService) store(
	ctx context.Context,
	repo *repository.ResolvedAnswerRepository,
	ticketID, question, answer string,
	citations []domain.Citation,
) (*domain.ResolvedAnswer, error) {
	ra := &domain.ResolvedAnswer{
		TicketID:           ticketID,
		Question:           question,
		NormalizedQuestion: textutil.Normalize(question),
		Answer:             answer,
		Citations:          citations,
	}
	if err := repo.Upsert(ctx, ra); err != nil {
		return nil, fmt.Errorf("failed to store resolved answer: %w", err)
	}
	return ra, nil
}

func (s *ResolvedAnswerService) remember(ctx context.Context, ra *domain.ResolvedAnswer) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, ra); err != nil {
		s.logger.Warn("resolved cache store failed", zap.String("ticket_id", ra.TicketID), zap.Error(err))
	}
}
