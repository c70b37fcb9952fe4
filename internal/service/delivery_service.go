package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chat-handoff-be/internal/handoff"
	"chat-handoff-be/internal/pkg/logger"
)

// deliveryService pushes approved replies to the external chat channel over
// its HTTP push endpoint. Implements handoff.Deliverer.
type deliveryService struct {
	client            *http.Client
	pushURL           string
	defaultCredential string
	logger            logger.ILogger
}

func NewDeliveryService(pushURL, defaultCredential string, log logger.ILogger) handoff.Deliverer {
	return &deliveryService{
		client:            &http.Client{Timeout: 15 * time.Second},
		pushURL:           pushURL,
		defaultCredential: defaultCredential,
		logger:            log,
	}
}

func (s *deliveryService) DeliverToUser(ctx context.Context, userID string, reply handoff.ReplyPayload, credential string) error {
	if s.pushURL == "" {
		return fmt.Errorf("deliver: channel push url not configured")
	}
	if credential == "" {
		credential = s.defaultCredential
	}

	body, err := json.Marshal(map[string]interface{}{
		"to":   userID,
		"text": reply.Text,
	})
	if err != nil {
		return fmt.Errorf("deliver: marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("deliver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("deliver: channel returned %d: %s", resp.StatusCode, string(snippet))
	}

	s.logger.Debug("Delivery", "Reply delivered", map[string]interface{}{
		"user_id": userID,
		"status":  resp.StatusCode,
	})
	return nil
}
