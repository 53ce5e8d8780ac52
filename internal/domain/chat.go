package domain

import "time"

// Message roles
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Conversation groups the messages of one user thread
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is an append-only conversation entry
type Message struct {
	ID              string          `json:"id"`
	ConversationID  string          `json:"conversation_id"`
	Role            string          `json:"role"`
	Content         string          `json:"content"`
	Citations       []Citation      `json:"citations,omitempty"`
	IsEscalated     bool            `json:"is_escalated"`
	TicketID        string          `json:"ticket_id,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	RetrievedScores []float64       `json:"retrieved_scores,omitempty"`
	GuardrailStatus GuardrailStatus `json:"guardrail_status,omitempty"`
	ResponseTimeMS  int64           `json:"response_time_ms,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ConversationDetail is a conversation with its messages
type ConversationDetail struct {
	Conversation
	Messages []*Message `json:"messages"`
}

// CreateConversationRequest is the request to open a conversation
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// ChatRequest is the request to ask a question
type ChatRequest struct {
	Query          string `json:"query" binding:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

// ChatResponse is the outcome of one pipeline run
type ChatResponse struct {
	Answer              string          `json:"answer"`
	Citations           []Citation      `json:"citations"`
	IsEscalated         bool            `json:"is_escalated"`
	TicketID            string          `json:"ticket_id,omitempty"`
	ConfidenceScore     *float64        `json:"confidence_score"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
	RetrievedScores     []float64       `json:"retrieved_scores"`
	GuardrailStatus     GuardrailStatus `json:"guardrail_status"`
	Outcome             Outcome         `json:"outcome"`
	ConversationID      string          `json:"conversation_id,omitempty"`
	Provider            string          `json:"provider,omitempty"`
}
