package repository

import (
	"context"

	"chat-handoff-be/internal/model"

	"github.com/google/uuid"
)

type OperatorRepository interface {
	Create(ctx context.Context, operator *model.Operator) error
	FindByEmail(ctx context.Context, email string) (*model.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error)
}
