package analytics

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Jung028/donation-platform/internal/config"
)

const createDonationEventsTable = `
	CREATE TABLE IF NOT EXISTS donation_events (
		event_id String,
		donation_id Int64,
		campaign_id Int64,
		donor_id Int64,
		amount Decimal(19, 4),
		currency LowCardinality(String),
		status LowCardinality(String),
		transaction_id Nullable(String),
		occurred_at DateTime64(3, 'UTC'),
		received_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(occurred_at)
	ORDER BY (campaign_id, donation_id)
`

// ClickHouseClient wraps the ClickHouse driver connection
type ClickHouseClient struct {
	conn driver.Conn
}

// NewClickHouseClient creates a new ClickHouse client with the given configuration
func NewClickHouseClient(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseClient, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Host},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseClient{conn: conn}, nil
}

// EnsureSchema creates the donation_events table if it does not exist.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createDonationEventsTable); err != nil {
		return fmt.Errorf("failed to create donation_events table: %w", err)
	}
	return nil
}

// Ping checks that ClickHouse is reachable.
func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Conn returns the underlying ClickHouse connection
func (c *ClickHouseClient) Conn() driver.Conn {
	return c.conn
}

// Close closes the ClickHouse connection
func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
