package repository

import (
	"context"

	"chat-handoff-be/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.ChatMessage) error
	// GetRecentByUserID returns the newest messages first, capped at limit.
	GetRecentByUserID(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error)
	CountByUserID(ctx context.Context, userID string) (int64, error)
}
