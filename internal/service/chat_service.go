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

const (
	titleLength  = 60
	defaultTitle = "New conversation"
)

// ChatService runs conversation-scoped questions through the pipeline
type ChatService struct {
	conversations *repository.ConversationRepository
	orchestrator  *OrchestratorService
	cfg           config.HITLConfig
	logger        *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	conversations *repository.ConversationRepository,
	orchestrator *OrchestratorService,
	cfg config.HITLConfig,
	logger *zap.Logger,
) *ChatService {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		conversations: conversations,
		orchestrator:  orchestrator,
		cfg:           cfg,
		logger:        logger,
	}
}

// Chat answers req for userID, opening a conversation when none is given
func (s *ChatService) Chat(ctx context.Context, userID string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}

	conv, err := s.conversation(ctx, userID, req.ConversationID, query)
	if err != nil {
		return nil, err
	}

	// history covers the messages before this question
	previous, err := s.conversations.RecentMessages(ctx, conv.ID, s.cfg.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	userMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        query,
	}
	if err := s.conversations.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return s.orchestrator.Answer(ctx, Query{
		Text:           query,
		ConversationID: conv.ID,
		History:        FormatHistory(previous),
		Provider:       req.Provider,
	})
}

func (s *ChatService) conversation(ctx context.Context, userID, id, query string) (*domain.Conversation, error) {
	if id == "" {
		conv := &domain.Conversation{UserID: userID, Title: conversationTitle(query)}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	return conv, nil
}

// FormatHistory renders messages as "User:"/"Assistant:" lines
func FormatHistory(msgs []*domain.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := "Assistant"
		if m.Role == domain.RoleUser {
			role = "User"
		}
		parts = append(parts, role+": "+m.Content)
	}
	return strings.Join(parts, "\n")
}

func conversationTitle(query string) string {
	if query == "" {
		return defaultTitle
	}
	if textutil.RuneLen(query) > titleLength {
		return textutil.Truncate(query, titleLength) + "..."
	}
	return query
}
