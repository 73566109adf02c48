package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryKeyPrefix = "analytics:campaign-summary:"

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisSummaryCache implements SummaryCache with JSON values in Redis.
type RedisSummaryCache struct {
	client *redis.Client
}

// NewRedisSummaryCache creates a summary cache backed by client.
func NewRedisSummaryCache(client *redis.Client) *RedisSummaryCache {
	return &RedisSummaryCache{client: client}
}

func summaryKey(campaignID int64) string {
	return summaryKeyPrefix + strconv.FormatInt(campaignID, 10)
}

// Get implements SummaryCache.
func (c *RedisSummaryCache) Get(ctx context.Context, campaignID int64) (*CampaignSummary, error) {
	raw, err := c.client.Get(ctx, summaryKey(campaignID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var summary CampaignSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode cached summary: %w", err)
	}
	return &summary, nil
}

// Set implements SummaryCache.
func (c *RedisSummaryCache) Set(ctx context.Context, summary *CampaignSummary, ttl time.Duration) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return c.client.Set(ctx, summaryKey(summary.CampaignID), raw, ttl).Err()
}

// Invalidate implements SummaryCache.
func (c *RedisSummaryCache) Invalidate(ctx context.Context, campaignID int64) error {
	return c.client.Del(ctx, summaryKey(campaignID)).Err()
}
