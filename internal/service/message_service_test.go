package service

import (
	"context"
	"testing"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageRepo struct {
	byUser map[string][]model.ChatMessage
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *model.ChatMessage) error {
	if r.byUser == nil {
		r.byUser = make(map[string][]model.ChatMessage)
	}
	// Prepend: the repository contract returns newest first
	r.byUser[message.UserId] = append([]model.ChatMessage{*message}, r.byUser[message.UserId]...)
	return nil
}

func (r *fakeMessageRepo) GetRecentByUserID(ctx context.Context, userID string, limit int) ([]model.ChatMessage, error) {
	msgs := r.byUser[userID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (r *fakeMessageRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	return int64(len(r.byUser[userID])), nil
}

func TestGetHistoryReportsWindowAndTotal(t *testing.T) {
	repo := &fakeMessageRepo{}
	svc := NewMessageService(repo)
	ctx := context.Background()

	require.NoError(t, svc.PersistMessage(ctx, "user-9", constant.MessageRoleUser, "first", nil))
	require.NoError(t, svc.PersistMessage(ctx, "user-9", constant.MessageRoleModel, "second", nil))
	require.NoError(t, svc.PersistMessage(ctx, "user-9", constant.MessageRoleUser, "third", nil))

	messages, total, err := svc.GetHistory(ctx, "user-9", 2)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "third", messages[0].Content)
}

func TestGetHistoryClampsLimit(t *testing.T) {
	repo := &fakeMessageRepo{}
	svc := NewMessageService(repo)
	ctx := context.Background()

	require.NoError(t, svc.PersistMessage(ctx, "user-9", constant.MessageRoleUser, "hi", nil))

	for _, limit := range []int{0, -5, 1000} {
		messages, total, err := svc.GetHistory(ctx, "user-9", limit)
		require.NoError(t, err)
		assert.Len(t, messages, 1)
		assert.Equal(t, int64(1), total)
	}
}

func TestPersistMessageCarriesMetadata(t *testing.T) {
	repo := &fakeMessageRepo{}
	svc := NewMessageService(repo)

	err := svc.PersistMessage(context.Background(), "user-9", constant.MessageRoleUser, "hello", map[string]interface{}{
		"message_id": "msg-1",
	})
	require.NoError(t, err)

	stored := repo.byUser["user-9"][0]
	assert.Equal(t, "msg-1", stored.MessageId)
	assert.NotEmpty(t, stored.Metadata)
}
