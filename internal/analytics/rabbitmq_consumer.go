package analytics

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Jung028/donation-platform/internal/config"
)

// MessageHandler processes one raw event body.
type MessageHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

// RabbitMQConsumer consumes donation events from RabbitMQ
type RabbitMQConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  config.RabbitMQConfig
	handler MessageHandler
	logger  zerolog.Logger
}

// NewRabbitMQConsumer connects, declares the exchange and a durable queue bound to it.
func NewRabbitMQConsumer(cfg config.RabbitMQConfig, handler MessageHandler, logger zerolog.Logger) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.Queue).
		Str("routing_key", cfg.RoutingKey).
		Msg("RabbitMQ consumer initialized")

	return &RabbitMQConsumer{
		conn:    conn,
		channel: channel,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

// Start consumes until ctx is cancelled or the channel closes.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.config.Queue, // queue
		"",             // consumer tag (auto-generated)
		false,          // auto-ack (we'll ack manually)
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info().Str("queue", c.config.Queue).Msg("RabbitMQ consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("context cancelled, stopping RabbitMQ consumer")
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.deliver(ctx, msg)
		}
	}
}

func (c *RabbitMQConsumer) deliver(ctx context.Context, msg amqp.Delivery) {
	err := c.handler.HandleMessage(ctx, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error().Err(ackErr).Msg("failed to ack message")
		}
	case IsPermanent(err):
		c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("dropping invalid event")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Error().Err(nackErr).Msg("failed to nack message")
		}
	default:
		c.logger.Warn().Err(err).Str("message_id", msg.MessageId).Msg("failed to handle event, requeueing")
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.logger.Error().Err(nackErr).Msg("failed to nack message")
		}
	}
}

// Close closes the RabbitMQ connection and channel
func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("error closing channel")
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
