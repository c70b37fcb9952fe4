package implementation

import (
	"context"
	"errors"

	"chat-handoff-be/internal/model"
	"chat-handoff-be/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperatorRepositoryImpl struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) repository.OperatorRepository {
	return &OperatorRepositoryImpl{db: db}
}

func (r *OperatorRepositoryImpl) Create(ctx context.Context, operator *model.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

func (r *OperatorRepositoryImpl) FindByEmail(ctx context.Context, email string) (*model.Operator, error) {
	var operator model.Operator
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&operator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

func (r *OperatorRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var operator model.Operator
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&operator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &operator, nil
}
