package service

import (
	"context"
	"encoding/json"

	"chat-handoff-be/internal/model"
	"chat-handoff-be/internal/repository"

	"gorm.io/datatypes"
)

// IMessageService is the conversation history surface. It implements
// handoff.MessageStore for the orchestrator and serves history reads.
type IMessageService interface {
	PersistMessage(ctx context.Context, userID, role, content string, metadata map[string]interface{}) error
	GetHistory(ctx context.Context, userID string, limit int) ([]model.ChatMessage, int64, error)
}

type messageService struct {
	messages repository.MessageRepository
}

func NewMessageService(messages repository.MessageRepository) IMessageService {
	return &messageService{messages: messages}
}

func (s *messageService) PersistMessage(ctx context.Context, userID, role, content string, metadata map[string]interface{}) error {
	msg := &model.ChatMessage{
		UserId:  userID,
		Role:    role,
		Content: content,
	}
	if id, ok := metadata["message_id"].(string); ok {
		msg.MessageId = id
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err == nil {
			msg.Metadata = datatypes.JSON(raw)
		}
	}
	return s.messages.Create(ctx, msg)
}

// GetHistory returns the most recent turns plus the total stored for the
// user, so clients can page beyond the window.
func (s *messageService) GetHistory(ctx context.Context, userID string, limit int) ([]model.ChatMessage, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	messages, err := s.messages.GetRecentByUserID(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.messages.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
