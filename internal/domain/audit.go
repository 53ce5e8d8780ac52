package domain

import "time"

// LogRecord is the audit entry of one pipeline run
type LogRecord struct {
	ID              string          `json:"id"`
	UserQuery       string          `json:"user_query"`
	Response        string          `json:"response"`
	RawResponse     string          `json:"raw_response,omitempty"`
	Citations       []Citation      `json:"citations"`
	IsEscalated     bool            `json:"is_escalated"`
	TicketID        string          `json:"ticket_id,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	ResponseTimeMS  int64           `json:"response_time_ms"`
	GuardrailStatus GuardrailStatus `json:"guardrail_status"`
	Provider        string          `json:"provider,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EvaluationMetrics aggregates the audit log
type EvaluationMetrics struct {
	TotalQueries          int      `json:"total_queries"`
	AnsweredQueries       int      `json:"answered_queries"`
	EscalatedQueries      int      `json:"escalated_queries"`
	AnswerRate            float64  `json:"answer_rate"`
	AverageConfidence     *float64 `json:"average_confidence"`
	AverageResponseTimeMS *float64 `json:"average_response_time_ms"`
	InputBlocked          int      `json:"input_blocked"`
	OutputBlocked         int      `json:"output_blocked"`
	LowConfidence         int      `json:"low_confidence"`
	CachedAnswers         int      `json:"cached_answers"`
	QueriesWithCitations  int      `json:"queries_with_citations"`
}

// Stats summarizes the stored data for the admin dashboard
type Stats struct {
	OpenTickets     int `json:"open_tickets"`
	ResolvedTickets int `json:"resolved_tickets"`
	ResolvedAnswers int `json:"resolved_answers"`
	IndexedChunks   int `json:"indexed_chunks"`
	TotalQueries    int `json:"total_queries"`
}
