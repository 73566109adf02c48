package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Jung028/donation-platform/internal/domain"
)

// KafkaPublisher publishes donation events to Kafka, one topic per event type.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
	now          func() time.Time
}

// NewKafkaPublisher creates a publisher for brokers. Event types without an
// entry in topicByEvent are written to a topic named after the routing key.
func NewKafkaPublisher(brokers []string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicByEvent: topicByEvent,
		now:          time.Now,
	}, nil
}

// PublishDonationEvent implements domain.EventPublisher.
func (p *KafkaPublisher) PublishDonationEvent(ctx context.Context, donation *domain.Donation) error {
	event, err := NewDonationEvent(donation, p.now())
	if err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicFor(event.EventType),
		Key:   []byte(event.PartitionKey()),
		Value: body,
		Time:  p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if topic, ok := p.topicByEvent[eventType]; ok && topic != "" {
		return topic
	}
	return RoutingKeyFor(eventType)
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
