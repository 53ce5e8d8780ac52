package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
)

// ConversationService manages the conversations of a user
type ConversationService struct {
	conversations *repository.ConversationRepository
}

// NewConversationService creates a new conversation service
func NewConversationService(conversations *repository.ConversationRepository) *ConversationService {
	return &ConversationService{conversations: conversations}
}

// Create opens an empty conversation
func (s *ConversationService) Create(ctx context.Context, userID string, req *domain.CreateConversationRequest) (*domain.Conversation, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	conv := &domain.Conversation{UserID: userID, Title: title}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// List returns the conversations of userID, most recent first
func (s *ConversationService) List(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	convs, err := s.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []*domain.Conversation{}
	}
	return convs, nil
}

// Get returns a conversation of userID with its messages
func (s *ConversationService) Get(ctx context.Context, userID, id string) (*domain.ConversationDetail, error) {
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.conversations.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return &domain.ConversationDetail{Conversation: *conv, Messages: msgs}, nil
}

// Delete removes a conversation of userID and its messages
func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, id)
}

func (s *ConversationService) owned(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	return conv, nil
}
