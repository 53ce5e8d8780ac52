package repository

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// LogRepository handles the append-only audit log
type LogRepository struct {
	db *DB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db}
}

// Create appends an audit record
func (r *LogRepository) Create(ctx context.Context, rec *domain.LogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = time.Now()
	if rec.Citations == nil {
		rec.Citations = []domain.Citation{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO log_records (id, user_query, response, raw_response, citations, is_escalated,
			ticket_id, confidence_score, response_time_ms, guardrail_status, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserQuery, rec.Response, nullString(rec.RawResponse), marshalJSON(rec.Citations),
		rec.IsEscalated, nullString(rec.TicketID), nullFloat(rec.ConfidenceScore), rec.ResponseTimeMS,
		string(rec.GuardrailStatus), nullString(rec.Provider), rec.CreatedAt)
	return err
}

// Recent returns the newest limit records
func (r *LogRepository) Recent(ctx context.Context, limit int) ([]*domain.LogRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_query, response, raw_response, citations, is_escalated, ticket_id,
			confidence_score, response_time_ms, guardrail_status, provider, created_at
		FROM log_records ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.LogRecord
	for rows.Next() {
		rec := &domain.LogRecord{}
		var (
			raw, citations, ticketID, provider sql.NullString
			confidence                         sql.NullFloat64
			status                             string
		)
		if err := rows.Scan(&rec.ID, &rec.UserQuery, &rec.Response, &raw, &citations, &rec.IsEscalated,
			&ticketID, &confidence, &rec.ResponseTimeMS, &status, &provider, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.RawResponse = raw.String
		unmarshalJSON(citations, &rec.Citations)
		rec.TicketID = ticketID.String
		rec.ConfidenceScore = floatPtr(confidence)
		rec.GuardrailStatus = domain.GuardrailStatus(status)
		rec.Provider = provider.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Evaluate aggregates the audit log. Confidence is clamped to 1.0 to absorb
// raw similarity scores recorded by older versions.
func (r *LogRepository) Evaluate(ctx context.Context) (*domain.EvaluationMetrics, error) {
	var (
		m                domain.EvaluationMetrics
		escalated        sql.NullInt64
		inputBlocked     sql.NullInt64
		outputBlocked    sql.NullInt64
		lowConfidence    sql.NullInt64
		cached           sql.NullInt64
		withCitations    sql.NullInt64
		avgConf, avgTime sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN is_escalated THEN 1 ELSE 0 END),
			AVG(CASE WHEN confidence_score > 1.0 THEN 1.0 ELSE confidence_score END),
			AVG(response_time_ms),
			SUM(CASE WHEN guardrail_status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN guardrail_status LIKE 'output\_%' ESCAPE '\' THEN 1 ELSE 0 END),
			SUM(CASE WHEN guardrail_status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN guardrail_status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN citations IS NOT NULL AND citations NOT IN ('[]', 'null', '') THEN 1 ELSE 0 END)
		FROM log_records
	`, string(domain.StatusInputBlocked), string(domain.StatusLowConfidence), string(domain.StatusCachedResolved)).
		Scan(&m.TotalQueries, &escalated, &avgConf, &avgTime, &inputBlocked, &outputBlocked,
			&lowConfidence, &cached, &withCitations)
	if err != nil {
		return nil, err
	}

	m.EscalatedQueries = int(escalated.Int64)
	m.AnsweredQueries = m.TotalQueries - m.EscalatedQueries
	if m.TotalQueries > 0 {
		m.AnswerRate = math.Round(float64(m.AnsweredQueries)/float64(m.TotalQueries)*1000) / 10
	}
	if avgConf.Valid {
		v := math.Round(avgConf.Float64*10000) / 10000
		m.AverageConfidence = &v
	}
	if avgTime.Valid {
		v := math.Round(avgTime.Float64)
		m.AverageResponseTimeMS = &v
	}
	m.InputBlocked = int(inputBlocked.Int64)
	m.OutputBlocked = int(outputBlocked.Int64)
	m.LowConfidence = int(lowConfidence.Int64)
	m.CachedAnswers = int(cached.Int64)
	m.QueriesWithCitations = int(withCitations.Int64)
	return &m, nil
}
