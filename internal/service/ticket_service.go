package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/textutil"
)

// Ticket list filters
const (
	TicketFilterOpen     = "open"
	TicketFilterResolved = "resolved"
	TicketFilterAll      = "all"
)

// TicketService handles human escalation tickets.
//
// Duplicate detection only scans a recent window of tickets. Two concurrent
// identical questions may both miss each other and open two tickets; the
// resolution cascade closes such duplicates later.
type TicketService struct {
	db       *repository.DB
	tickets  *repository.TicketRepository
	resolved *ResolvedAnswerService
	cfg      config.HITLConfig
	logger   *zap.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(
	db *repository.DB,
	tickets *repository.TicketRepository,
	resolved *ResolvedAnswerService,
	cfg config.HITLConfig,
	logger *zap.Logger,
) *TicketService {
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = 200
	}
	if cfg.ResolveWindow <= 0 {
		cfg.ResolveWindow = 500
	}
	if cfg.ResolvedTicketWindow <= 0 {
		cfg.ResolvedTicketWindow = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{db: db, tickets: tickets, resolved: resolved, cfg: cfg, logger: logger}
}

// Create opens a new ticket for query
func (s *TicketService) Create(ctx context.Context, query string) (*domain.Ticket, error) {
	ticket := &domain.Ticket{UserQuery: query}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return ticket, nil
}

// CreateOrReuse returns a recent open ticket asking the same normalized
// question, opening a new one when none exists. The bool reports reuse.
func (s *TicketService) CreateOrReuse(ctx context.Context, query string) (*domain.Ticket, bool, error) {
	normalized := textutil.Normalize(query)
	open, err := s.tickets.RecentByStatus(ctx, domain.TicketStatusOpen, s.cfg.DedupeWindow)
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan open tickets: %w", err)
	}
	for _, t := range open {
		if textutil.Normalize(t.UserQuery) == normalized {
			return t, true, nil
		}
	}

	ticket, err := s.Create(ctx, query)
	if err != nil {
		return nil, false, err
	}
	return ticket, false, nil
}

// Get returns a ticket by ID
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	return ticket, nil
}

// List returns tickets matching filter, newest first
func (s *TicketService) List(ctx context.Context, filter string) ([]*domain.Ticket, error) {
	var (
		tickets []*domain.Ticket
		err     error
	)
	switch filter {
	case "", TicketFilterOpen:
		tickets, err = s.tickets.RecentByStatus(ctx, domain.TicketStatusOpen, 0)
	case TicketFilterResolved:
		tickets, err = s.tickets.RecentByStatus(ctx, domain.TicketStatusResolved, 0)
	case TicketFilterAll:
		tickets, err = s.tickets.List(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown ticket status %q", domain.ErrInvalidRequest, filter)
	}
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []*domain.Ticket{}
	}
	return tickets, nil
}

// Resolve records a human answer, closes recent open duplicates of the same
// question and stores the answer for reuse
func (s *TicketService) Resolve(ctx context.Context, id string, req *domain.ResolveTicketRequest) (*domain.ResolveResult, error) {
	answer := strings.TrimSpace(req.HumanAnswer)
	if answer == "" {
		return nil, fmt.Errorf("%w: human_answer is required", domain.ErrInvalidRequest)
	}

	var (
		result = &domain.ResolveResult{}
		stored *domain.ResolvedAnswer
	)
	err := s.db.InTx(ctx, func(tx repository.Querier) error {
		tickets := s.tickets.WithTx(tx)

		ticket, err := tickets.Get(ctx, id)
		if err != nil {
			return err
		}
		if ticket == nil {
			return domain.ErrNotFound
		}
		if err := tickets.Resolve(ctx, id, answer); err != nil {
			return err
		}

		stored, err = s.resolved.store(ctx, s.resolved.repo.WithTx(tx), ticket.ID, ticket.UserQuery, answer, req.Citations)
		if err != nil {
			return err
		}

		normalized := textutil.Normalize(ticket.UserQuery)
		open, err := tickets.RecentByStatus(ctx, domain.TicketStatusOpen, s.cfg.ResolveWindow)
		if err != nil {
			return err
		}
		for _, t := range open {
			if t.ID == ticket.ID || textutil.Normalize(t.UserQuery) != normalized {
				continue
			}
			if err := tickets.Resolve(ctx, t.ID, answer); err != nil {
				return err
			}
			result.CascadeResolved++
		}

		result.Ticket, err = tickets.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ticket %s: %w", id, err)
	}

	s.resolved.remember(ctx, stored)
	s.logger.Info("ticket resolved",
		zap.String("ticket_id", id),
		zap.Int("cascade_resolved", result.CascadeResolved))
	return result, nil
}

// FindResolved serves a query from a recently resolved ticket asking the
// same normalized question, storing the answer so later lookups hit the
// resolved answers table directly
func (s *TicketService) FindResolved(ctx context.Context, query string) (*domain.ResolvedAnswer, error) {
	normalized := textutil.Normalize(query)
	if normalized == "" {
		return nil, nil
	}
	resolved, err := s.tickets.RecentByStatus(ctx, domain.TicketStatusResolved, s.cfg.ResolvedTicketWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to scan resolved tickets: %w", err)
	}
	for _, t := range resolved {
		if t.HumanAnswer == nil || textutil.Normalize(t.UserQuery) != normalized {
			continue
		}
		s.logger.Info("serving answer from resolved ticket", zap.String("ticket_id", t.ID))
		return s.resolved.Upsert(ctx, t.ID, t.UserQuery, *t.HumanAnswer, nil)
	}
	return nil, nil
}
