package service

import (
	"context"
	"fmt"
	"strings"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/handoff"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/internal/repository"
	"chat-handoff-be/pkg/llm"
)

const historyWindow = 10

const systemPrompt = `You are a customer support assistant. Answer the user's
latest message helpfully and concisely, in the user's language. If you do not
know the answer, say so rather than guessing.`

// replyService implements handoff.ReplyGenerator over an LLM provider,
// grounding each reply in recent conversation history.
type replyService struct {
	provider llm.LLMProvider
	messages repository.MessageRepository
	model    string
	logger   logger.ILogger
}

func NewReplyService(provider llm.LLMProvider, messages repository.MessageRepository, model string, log logger.ILogger) handoff.ReplyGenerator {
	return &replyService{
		provider: provider,
		messages: messages,
		model:    model,
		logger:   log,
	}
}

func (s *replyService) GenerateReply(ctx context.Context, userID string, payload handoff.RequestPayload) (*handoff.ReplyPayload, error) {
	history := s.loadHistory(ctx, userID)
	history = append(history, llm.Message{Role: "user", Content: payload.Text})

	opts := []llm.Option{llm.WithTemperature(0.3)}
	if s.model != "" {
		opts = append(opts, llm.WithModel(s.model))
	}

	text, err := s.provider.Chat(ctx, history, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("generate reply: provider returned empty response")
	}

	metadata := map[string]interface{}{"model": s.model}
	if len(payload.EntityIDs) > 0 {
		metadata["entity_ids"] = payload.EntityIDs
	}
	return &handoff.ReplyPayload{Text: text, Metadata: metadata}, nil
}

// loadHistory converts stored conversation history into provider messages,
// oldest first. History is advisory; a read failure degrades to a fresh
// conversation rather than failing the reply.
func (s *replyService) loadHistory(ctx context.Context, userID string) []llm.Message {
	out := []llm.Message{{Role: "system", Content: systemPrompt}}

	recent, err := s.messages.GetRecentByUserID(ctx, userID, historyWindow)
	if err != nil {
		s.logger.Warn("ReplyService", "Failed to load history", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return out
	}

	for i := len(recent) - 1; i >= 0; i-- {
		role := "user"
		if recent[i].Role != constant.MessageRoleUser {
			role = "assistant"
		}
		out = append(out, llm.Message{Role: role, Content: recent[i].Content})
	}
	return out
}
