package domain

import "time"

// Ticket statuses
const (
	TicketStatusOpen     = "open"
	TicketStatusResolved = "resolved"
)

// Ticket is a human escalation request
type Ticket struct {
	ID          string    `json:"id"`
	UserQuery   string    `json:"user_query"`
	Status      string    `json:"status"`
	HumanAnswer *string   `json:"human_answer,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ResolvedAnswer is a human answer reusable for equivalent questions
type ResolvedAnswer struct {
	ID                 string     `json:"id"`
	TicketID           string     `json:"ticket_id"`
	Question           string     `json:"question"`
	NormalizedQuestion string     `json:"normalized_question"`
	Answer             string     `json:"answer"`
	Citations          []Citation `json:"citations"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ResolveTicketRequest is the request to answer a ticket
type ResolveTicketRequest struct {
	HumanAnswer string     `json:"human_answer" binding:"required"`
	Citations   []Citation `json:"citations,omitempty"`
}

// ResolveResult reports a resolution and its cascade
type ResolveResult struct {
	Ticket          *Ticket `json:"ticket"`
	CascadeResolved int     `json:"cascade_resolved"`
}
