package service

import (
	"context"
	"encoding/json"
	"log"

	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/internal/websocket"
	"chat-handoff-be/pkg/events"
	pktNats "chat-handoff-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// INotifierService drains the in-process event bus, pushing each event to
// connected websocket clients and onto the durable NATS stream.
type INotifierService interface {
	Consume(ctx context.Context) error
}

type notifierService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	hub       *websocket.Hub
	publisher *pktNats.Publisher
	logger    logger.ILogger
}

func NewNotifierService(
	pubSub *gochannel.GoChannel,
	topicName string,
	hub *websocket.Hub,
	publisher *pktNats.Publisher,
	log logger.ILogger,
) INotifierService {
	return &notifierService{
		pubSub:    pubSub,
		topicName: topicName,
		hub:       hub,
		publisher: publisher,
		logger:    log,
	}
}

func (s *notifierService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *notifierService) processMessage(ctx context.Context, msg *message.Message) {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		log.Printf("[ERROR] Failed to unmarshal event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	s.hub.Broadcast(envelope.Type, envelope.Data)

	if s.publisher != nil {
		event := events.BaseEvent{
			Type:       envelope.Type,
			Data:       envelope.Data,
			OccurredAt: envelope.OccurredAt,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Notifier", "Failed to publish event to NATS", map[string]interface{}{
				"type":  envelope.Type,
				"error": err.Error(),
			})
		}
	}

	msg.Ack()
}
