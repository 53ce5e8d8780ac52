package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// TicketRepository handles escalation ticket persistence
type TicketRepository struct {
	q Querier
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *DB) *TicketRepository {
	return &TicketRepository{q: db}
}

// WithTx returns a repository bound to tx
func (r *TicketRepository) WithTx(tx Querier) *TicketRepository {
	return &TicketRepository{q: tx}
}

// Create creates a ticket, open unless a status is set
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	var answer sql.NullString
	if ticket.HumanAnswer != nil {
		answer = sql.NullString{String: *ticket.HumanAnswer, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tickets (id, user_query, status, human_answer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ticket.ID, ticket.UserQuery, ticket.Status, answer, ticket.CreatedAt, ticket.UpdatedAt)
	return err
}

// Get retrieves a ticket by ID
func (r *TicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	tickets, err := r.query(ctx, `
		SELECT id, user_query, status, human_answer, created_at, updated_at
		FROM tickets WHERE id = ?
	`, id)
	if err != nil || len(tickets) == 0 {
		return nil, err
	}
	return tickets[0], nil
}

// RecentByStatus returns up to limit tickets with status, newest first.
// A non-positive limit returns every match.
func (r *TicketRepository) RecentByStatus(ctx context.Context, status string, limit int) ([]*domain.Ticket, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, `
		SELECT id, user_query, status, human_answer, created_at, updated_at
		FROM tickets WHERE status = ? ORDER BY rowid DESC LIMIT ?
	`, status, limit)
}

// List returns every ticket, newest first
func (r *TicketRepository) List(ctx context.Context) ([]*domain.Ticket, error) {
	return r.query(ctx, `
		SELECT id, user_query, status, human_answer, created_at, updated_at
		FROM tickets ORDER BY rowid DESC
	`)
}

// Resolve marks a ticket resolved with a human answer
func (r *TicketRepository) Resolve(ctx context.Context, id, answer string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE tickets SET status = ?, human_answer = ?, updated_at = ? WHERE id = ?
	`, domain.TicketStatusResolved, answer, time.Now(), id)
	return err
}

func (r *TicketRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Ticket, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket := &domain.Ticket{}
		var answer sql.NullString
		if err := rows.Scan(&ticket.ID, &ticket.UserQuery, &ticket.Status, &answer,
			&ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return nil, err
		}
		if answer.Valid {
			s := answer.String
			ticket.HumanAnswer = &s
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
