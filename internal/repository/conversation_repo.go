package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// ConversationRepository handles conversation and message persistence
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)

	return err
}

// Get retrieves a conversation by ID
func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListByUser lists conversations of a user, most recently updated first
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return r.list(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at DESC, rowid DESC
	`, userID)
}

// List lists all conversations
func (r *ConversationRepository) List(ctx context.Context) ([]*domain.Conversation, error) {
	return r.list(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations ORDER BY rowid
	`)
}

func (r *ConversationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		conv := &domain.Conversation{}
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// Touch updates a conversation's updated_at timestamp
func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// UpdateTitle replaces a conversation title
func (r *ConversationRepository) UpdateTitle(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	return err
}

// Delete deletes a conversation and its messages
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return err
}

// CreateMessage appends a message to a conversation
func (r *ConversationRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now()

	var citations, scores sql.NullString
	if msg.Citations != nil {
		citations = nullString(marshalJSON(msg.Citations))
	}
	if msg.RetrievedScores != nil {
		scores = nullString(marshalJSON(msg.RetrievedScores))
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, citations, is_escalated,
			ticket_id, confidence_score, retrieved_scores, guardrail_status, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, citations, msg.IsEscalated,
		nullString(msg.TicketID), nullFloat(msg.ConfidenceScore), scores,
		nullString(string(msg.GuardrailStatus)), msg.ResponseTimeMS, msg.CreatedAt)

	return err
}

const messageColumns = `id, conversation_id, role, content, citations, is_escalated, ticket_id,
	confidence_score, retrieved_scores, guardrail_status, response_time_ms, created_at`

// GetMessages retrieves all messages of a conversation in order
func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	return r.queryMessages(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE conversation_id = ? ORDER BY rowid ASC`, conversationID)
}

// RecentMessages returns the last limit messages of a conversation, oldest first
func (r *ConversationRepository) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	msgs, err := r.queryMessages(ctx, `SELECT `+messageColumns+`
		FROM messages WHERE conversation_id = ? ORDER BY rowid DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AllMessages returns every stored message
func (r *ConversationRepository) AllMessages(ctx context.Context) ([]*domain.Message, error) {
	return r.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY rowid`)
}

// UpdateMessageContent rewrites a message body
func (r *ConversationRepository) UpdateMessageContent(ctx context.Context, id, content string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id)
	return err
}

func (r *ConversationRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		msg := &domain.Message{}
		var (
			citations, scores, ticketID, status sql.NullString
			confidence                          sql.NullFloat64
			elapsed                             sql.NullInt64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &citations,
			&msg.IsEscalated, &ticketID, &confidence, &scores, &status, &elapsed, &msg.CreatedAt); err != nil {
			return nil, err
		}
		unmarshalJSON(citations, &msg.Citations)
		unmarshalJSON(scores, &msg.RetrievedScores)
		msg.TicketID = ticketID.String
		msg.ConfidenceScore = floatPtr(confidence)
		msg.GuardrailStatus = domain.GuardrailStatus(status.String)
		msg.ResponseTimeMS = elapsed.Int64
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
