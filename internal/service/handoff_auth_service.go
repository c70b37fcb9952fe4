package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-handoff-be/internal/dto"
	"chat-handoff-be/internal/handoff"
	"chat-handoff-be/internal/model"
	"chat-handoff-be/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	CreateOperator(ctx context.Context, email, fullName, password, role string) (*dto.OperatorResponse, error)
	ParseToken(token string) (handoff.Identity, error)
}

type authService struct {
	operators repository.OperatorRepository
	jwtSecret string
}

func NewAuthService(operators repository.OperatorRepository, jwtSecret string) IAuthService {
	return &authService{
		operators: operators,
		jwtSecret: jwtSecret,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	operator, err := s.operators.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if operator == nil {
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	accessTokenExpiry := time.Hour * 24

	claims := jwt.MapClaims{
		"operator_id": operator.Id.String(),
		"full_name":   operator.FullName,
		"role":        operator.Role,
		"exp":         time.Now().Add(accessTokenExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: signedToken,
		Operator: dto.OperatorResponse{
			ID:       operator.Id.String(),
			Email:    operator.Email,
			FullName: operator.FullName,
			Role:     operator.Role,
		},
	}, nil
}

func (s *authService) CreateOperator(ctx context.Context, email, fullName, password, role string) (*dto.OperatorResponse, error) {
	existing, err := s.operators.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	operator := &model.Operator{
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}

	return &dto.OperatorResponse{
		ID:       operator.Id.String(),
		Email:    operator.Email,
		FullName: operator.FullName,
		Role:     operator.Role,
	}, nil
}

// ParseToken validates a signed token into an identity. Used for both the
// HTTP middleware context and the websocket auth frame.
func (s *authService) ParseToken(tokenStr string) (handoff.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return handoff.Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return handoff.Identity{}, errors.New("invalid token claims")
	}

	operatorID, _ := claims["operator_id"].(string)
	fullName, _ := claims["full_name"].(string)
	role, _ := claims["role"].(string)
	if operatorID == "" || role == "" {
		return handoff.Identity{}, errors.New("invalid token claims")
	}

	return handoff.Identity{
		ID:          operatorID,
		DisplayName: fullName,
		Role:        role,
	}, nil
}
