package service

import (
	"context"

	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/repository"
)

// MessageService appends to and queries the persistent message log.
type MessageService struct {
	messages repository.MessageRepository
}

// NewMessageService creates a MessageService.
func NewMessageService(messages repository.MessageRepository) *MessageService {
	return &MessageService{messages: messages}
}

// Log appends one message row. Receiver is empty for global messages.
func (s *MessageService) Log(ctx context.Context, sender, receiver, content, kind string) error {
	err := s.messages.Log(ctx, &models.ChatMessage{
		Sender:   sender,
		Receiver: receiver,
		Content:  content,
		Kind:     kind,
	})
	if err == nil {
		observability.MessagesTotal.WithLabelValues(kind).Inc()
	}
	return err
}

// Recent returns the newest messages, most recent first.
func (s *MessageService) Recent(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	return s.messages.Recent(ctx, limit)
}

// Count returns the total number of logged messages.
func (s *MessageService) Count(ctx context.Context) (int64, error) {
	return s.messages.Count(ctx)
}
