package service

import (
	"context"
	"fmt"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/internal/pkg/mailer"
	"chat-handoff-be/pkg/events"
	pktNats "chat-handoff-be/pkg/nats"
)

// IAlertService emails the operator inbox when the durable stream carries an
// event that means a user was left without an answer.
type IAlertService interface {
	Start() error
}

type alertService struct {
	subscriber *pktNats.Subscriber
	email      mailer.IEmailService
	alertEmail string
	logger     logger.ILogger
}

func NewAlertService(subscriber *pktNats.Subscriber, email mailer.IEmailService, alertEmail string, log logger.ILogger) IAlertService {
	return &alertService{
		subscriber: subscriber,
		email:      email,
		alertEmail: alertEmail,
		logger:     log,
	}
}

func (s *alertService) Start() error {
	if s.subscriber == nil {
		s.logger.Warn("Alerts", "NATS unavailable, alerting disabled", nil)
		return nil
	}
	if s.alertEmail == "" {
		s.logger.Info("Alerts", "No alert email configured, alerting disabled", nil)
		return nil
	}

	if err := s.subscriber.Subscribe(
		fmt.Sprintf("handoff.%s", constant.EventSendError),
		"alert-send-error",
		s.onSendError,
	); err != nil {
		return err
	}

	return s.subscriber.Subscribe(
		fmt.Sprintf("handoff.%s", constant.EventReviewStaleRemoved),
		"alert-stale-review",
		s.onStaleReview,
	)
}

func (s *alertService) onSendError(ctx context.Context, event events.Event) error {
	data := event.Payload()
	userID, _ := data["user_id"].(string)
	messageID, _ := data["message_id"].(string)
	reason, _ := data["error"].(string)

	if err := s.email.SendDeliveryFailureAlert(s.alertEmail, userID, messageID, reason); err != nil {
		// Returning the error would Nak and retry the alert forever
		s.logger.Error("Alerts", "Failed to send delivery failure alert", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return nil
}

func (s *alertService) onStaleReview(ctx context.Context, event events.Event) error {
	data := event.Payload()
	userID, _ := data["user_id"].(string)
	reviewID, _ := data["review_id"].(string)

	if err := s.email.SendStaleReviewAlert(s.alertEmail, userID, reviewID); err != nil {
		s.logger.Error("Alerts", "Failed to send stale review alert", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return nil
}
