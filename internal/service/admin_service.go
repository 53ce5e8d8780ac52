package service

import (
	"context"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// ChunkCounter reports the size of an index
type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

// AdminService handles audit and reporting operations
type AdminService struct {
	logs     *repository.LogRepository
	tickets  *repository.TicketRepository
	resolved *repository.ResolvedAnswerRepository
	chunks   ChunkCounter
}

// NewAdminService creates a new admin service
func NewAdminService(
	logs *repository.LogRepository,
	tickets *repository.TicketRepository,
	resolved *repository.ResolvedAnswerRepository,
	chunks ChunkCounter,
) *AdminService {
	return &AdminService{
		logs:     logs,
		tickets:  tickets,
		resolved: resolved,
		chunks:   chunks,
	}
}

// Logs returns the newest audit records. limit is clamped to [1, 500].
func (s *AdminService) Logs(ctx context.Context, limit int) ([]*domain.LogRecord, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	records, err := s.logs.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.LogRecord{}
	}
	return records, nil
}

// Evaluation aggregates the audit log
func (s *AdminService) Evaluation(ctx context.Context) (*domain.EvaluationMetrics, error) {
	return s.logs.Evaluate(ctx)
}

// GetStats counts tickets, stored answers, indexed chunks and queries
func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	open, err := s.tickets.RecentByStatus(ctx, domain.TicketStatusOpen, 0)
	if err != nil {
		return nil, err
	}
	resolvedTickets, err := s.tickets.RecentByStatus(ctx, domain.TicketStatusResolved, 0)
	if err != nil {
		return nil, err
	}
	answers, err := s.resolved.List(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := s.logs.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		OpenTickets:     len(open),
		ResolvedTickets: len(resolvedTickets),
		ResolvedAnswers: len(answers),
		TotalQueries:    metrics.TotalQueries,
	}
	if s.chunks != nil {
		if stats.IndexedChunks, err = s.chunks.Count(ctx); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
