package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Jung028/donation-platform/internal/config"
)

// defaultRetryDelay is how long a transiently failing message waits before the next attempt.
const defaultRetryDelay = time.Second

// KafkaConsumer consumes donation events from Kafka as part of a consumer group.
type KafkaConsumer struct {
	reader     *kafka.Reader
	handler    MessageHandler
	logger     zerolog.Logger
	retryDelay time.Duration
}

// NewKafkaConsumer creates a group reader over the completed and failed topics.
func NewKafkaConsumer(cfg config.KafkaConfig, handler MessageHandler, logger zerolog.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.CompletedTopic, cfg.FailedTopic},
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	return &KafkaConsumer{
		reader:     reader,
		handler:    handler,
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}, nil
}

// Start consumes until ctx is cancelled. Offsets are committed only after a
// message was recorded or found to be permanently invalid.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info().Msg("Kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Info().Msg("context cancelled, stopping Kafka consumer")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset: %w", err)
		}
	}
}

// process retries transient failures in place so offsets never skip an unrecorded event.
// It only returns an error when ctx ends.
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) error {
	for {
		err := c.handler.HandleMessage(ctx, msg.Value)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			c.logger.Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("dropping invalid event")
			return nil
		}

		c.logger.Warn().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("failed to handle event, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
