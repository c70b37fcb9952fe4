package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator is a human agent allowed to take over conversations.
type Operator struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string         `gorm:"type:varchar(255);unique;not null"`
	FullName     string         `gorm:"type:varchar(255);not null"`
	PasswordHash string         `gorm:"type:varchar(255);not null"`
	Role         string         `gorm:"type:varchar(50);not null;default:'operator'"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (Operator) TableName() string {
	return "operators"
}
