package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// ResolvedAnswerRepository handles reusable human answers
type ResolvedAnswerRepository struct {
	q Querier
}

// NewResolvedAnswerRepository creates a new resolved answer repository
func NewResolvedAnswerRepository(db *DB) *ResolvedAnswerRepository {
	return &ResolvedAnswerRepository{q: db}
}

// WithTx returns a repository bound to tx
func (r *ResolvedAnswerRepository) WithTx(tx Querier) *ResolvedAnswerRepository {
	return &ResolvedAnswerRepository{q: tx}
}

const resolvedColumns = `id, ticket_id, question, normalized_question, answer, citations, created_at, updated_at`

// FindByNormalized returns the most recently updated answer stored under a
// normalized question
func (r *ResolvedAnswerRepository) FindByNormalized(ctx context.Context, normalized string) (*domain.ResolvedAnswer, error) {
	answers, err := r.query(ctx, `SELECT `+resolvedColumns+`
		FROM resolved_answers WHERE normalized_question = ?
		ORDER BY updated_at DESC, rowid DESC LIMIT 1`, normalized)
	if err != nil || len(answers) == 0 {
		return nil, err
	}
	return answers[0], nil
}

// GetByTicket returns the answer created from a ticket
func (r *ResolvedAnswerRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.ResolvedAnswer, error) {
	answers, err := r.query(ctx, `SELECT `+resolvedColumns+`
		FROM resolved_answers WHERE ticket_id = ?`, ticketID)
	if err != nil || len(answers) == 0 {
		return nil, err
	}
	return answers[0], nil
}

// List returns every resolved answer in insertion order
func (r *ResolvedAnswerRepository) List(ctx context.Context) ([]*domain.ResolvedAnswer, error) {
	return r.query(ctx, `SELECT `+resolvedColumns+` FROM resolved_answers ORDER BY rowid`)
}

// Upsert inserts or replaces the answer keyed by ticket ID
func (r *ResolvedAnswerRepository) Upsert(ctx context.Context, ra *domain.ResolvedAnswer) error {
	if ra.ID == "" {
		ra.ID = uuid.New().String()
	}
	if ra.Citations == nil {
		ra.Citations = []domain.Citation{}
	}
	now := time.Now()
	ra.UpdatedAt = now
	if ra.CreatedAt.IsZero() {
		ra.CreatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO resolved_answers (id, ticket_id, question, normalized_question, answer, citations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticket_id) DO UPDATE SET
			question = excluded.question,
			normalized_question = excluded.normalized_question,
			answer = excluded.answer,
			citations = excluded.citations,
			updated_at = excluded.updated_at
	`, ra.ID, ra.TicketID, ra.Question, ra.NormalizedQuestion, ra.Answer,
		marshalJSON(ra.Citations), ra.CreatedAt, ra.UpdatedAt)
	if err != nil {
		return err
	}

	// the stored row keeps its original id and creation time
	stored, err := r.GetByTicket(ctx, ra.TicketID)
	if err != nil {
		return err
	}
	if stored != nil {
		*ra = *stored
	}
	return nil
}

// UpdateText rewrites the question and answer of a row
func (r *ResolvedAnswerRepository) UpdateText(ctx context.Context, id, question, answer string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE resolved_answers SET question = ?, answer = ? WHERE id = ?
	`, question, answer, id)
	return err
}

func (r *ResolvedAnswerRepository) query(ctx context.Context, query string, args ...any) ([]*domain.ResolvedAnswer, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*domain.ResolvedAnswer
	for rows.Next() {
		ra := &domain.ResolvedAnswer{}
		var citations sql.NullString
		if err := rows.Scan(&ra.ID, &ra.TicketID, &ra.Question, &ra.NormalizedQuestion,
			&ra.Answer, &citations, &ra.CreatedAt, &ra.UpdatedAt); err != nil {
			return nil, err
		}
		unmarshalJSON(citations, &ra.Citations)
		answers = append(answers, ra)
	}
	return answers, rows.Err()
}
