package service

import (
	"context"
	"testing"

	"chat-handoff-be/internal/dto"
	"chat-handoff-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeOperatorRepo struct {
	byEmail map[string]*model.Operator
}

func (r *fakeOperatorRepo) Create(ctx context.Context, operator *model.Operator) error {
	if operator.Id == uuid.Nil {
		operator.Id = uuid.New()
	}
	r.byEmail[operator.Email] = operator
	return nil
}

func (r *fakeOperatorRepo) FindByEmail(ctx context.Context, email string) (*model.Operator, error) {
	return r.byEmail[email], nil
}

func (r *fakeOperatorRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	for _, op := range r.byEmail {
		if op.Id == id {
			return op, nil
		}
	}
	return nil, nil
}

func seededAuthService(t *testing.T) IAuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := &fakeOperatorRepo{byEmail: map[string]*model.Operator{
		"op@example.com": {
			Id:           uuid.New(),
			Email:        "op@example.com",
			FullName:     "First Operator",
			PasswordHash: string(hash),
			Role:         "operator",
		},
	}}
	return NewAuthService(repo, "test-secret")
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc := seededAuthService(t)

	res, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "op@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "operator", res.Operator.Role)

	ident, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Operator.ID, ident.ID)
	assert.Equal(t, "First Operator", ident.DisplayName)
	assert.Equal(t, "operator", ident.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := seededAuthService(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "op@example.com", password: "nope"},
		{name: "unknown email", email: "ghost@example.com", password: "s3cret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: tt.email, Password: tt.password})
			assert.EqualError(t, err, "invalid credentials")
		})
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc := seededAuthService(t)

	_, err := svc.ParseToken("not-a-token")
	assert.Error(t, err)

	_, err = svc.ParseToken("")
	assert.Error(t, err)
}

func TestCreateOperatorRejectsDuplicateEmail(t *testing.T) {
	svc := seededAuthService(t)

	_, err := svc.CreateOperator(context.Background(), "op@example.com", "Dup", "pw", "operator")
	assert.Error(t, err)

	created, err := svc.CreateOperator(context.Background(), "new@example.com", "New Operator", "pw", "operator")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", created.Email)
	assert.NotEmpty(t, created.ID)
}
