package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jung028/donation-platform/internal/events"
)

// EventRepository defines the data access the analytics service needs
type EventRepository interface {
	InsertDonation(ctx context.Context, rec *DonationRecord) error
	CampaignSummary(ctx context.Context, campaignID int64) (*CampaignSummary, error)
}

// SummaryCache stores campaign summaries for a short time.
// Get returns nil, nil on a miss.
type SummaryCache interface {
	Get(ctx context.Context, campaignID int64) (*CampaignSummary, error)
	Set(ctx context.Context, summary *CampaignSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, campaignID int64) error
}

// Service records donation events and answers campaign summary queries
type Service struct {
	repo     EventRepository
	cache    SummaryCache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewService creates a new analytics service. cache may be nil.
func NewService(repo EventRepository, cache SummaryCache, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// HandleMessage decodes and records one published donation event.
// Errors wrapping ErrInvalidEvent will never succeed on redelivery.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	var event events.DonationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: failed to unmarshal event: %v", ErrInvalidEvent, err)
	}

	rec, err := NewDonationRecord(&event)
	if err != nil {
		return err
	}

	if err := s.repo.InsertDonation(ctx, rec); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, rec.CampaignID); err != nil {
			s.logger.Warn().Err(err).Int64("campaign_id", rec.CampaignID).Msg("failed to invalidate summary cache")
		}
	}

	s.logger.Info().
		Str("event_id", event.EventID).
		Int64("donation_id", rec.DonationID).
		Int64("campaign_id", rec.CampaignID).
		Str("status", rec.Status).
		Msg("recorded donation event")
	return nil
}

// CampaignSummary returns the aggregated outcomes of a campaign.
func (s *Service) CampaignSummary(ctx context.Context, campaignID int64) (*CampaignSummary, error) {
	if campaignID <= 0 {
		return nil, fmt.Errorf("campaign id must be positive")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, campaignID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("campaign_id", campaignID).Msg("summary cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	summary, err := s.repo.CampaignSummary(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, summary, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Int64("campaign_id", campaignID).Msg("summary cache write failed")
		}
	}
	return summary, nil
}

// IsPermanent reports whether err should drop the message instead of requeueing it.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidEvent)
}
