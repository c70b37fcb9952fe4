package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Emitter is how orchestrator components announce state changes. The concrete
// implementation fans messages out on an in-process watermill channel;
// tests substitute a recording stub.
type Emitter interface {
	Emit(event Event)
}

// Envelope is the wire form events travel in on the bus.
type Envelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// ChannelEmitter publishes events to a watermill gochannel topic.
type ChannelEmitter struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewChannelEmitter(pubSub *gochannel.GoChannel, topic string) *ChannelEmitter {
	return &ChannelEmitter{pubSub: pubSub, topic: topic}
}

func (e *ChannelEmitter) Emit(event Event) {
	payload, err := json.Marshal(Envelope{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal event %s: %v", event.EventType(), err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubSub.Publish(e.topic, msg); err != nil {
		log.Printf("[ERROR] Failed to publish event %s: %v", event.EventType(), err)
	}
}
