// Package analytics records donation lifecycle events in ClickHouse and serves
// per-campaign summaries built from them.
package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jung028/donation-platform/internal/events"
)

// ErrInvalidEvent marks events that can never be recorded; redelivery would not help.
var ErrInvalidEvent = errors.New("invalid donation event")

// DonationRecord is one row of the donation_events table.
type DonationRecord struct {
	EventID       string
	DonationID    int64
	CampaignID    int64
	DonorID       int64
	Amount        decimal.Decimal
	Currency      string
	Status        string
	TransactionID *string
	OccurredAt    time.Time
}

// CurrencyTotal is the completed amount raised in one currency.
type CurrencyTotal struct {
	Currency  string `json:"currency"`
	Donations uint64 `json:"donations"`
	Amount    string `json:"amount"`
}

// CampaignSummary aggregates the recorded outcomes of a campaign's donations.
type CampaignSummary struct {
	CampaignID     int64           `json:"campaignId"`
	CompletedCount uint64          `json:"completedCount"`
	FailedCount    uint64          `json:"failedCount"`
	Totals         []CurrencyTotal `json:"totals"`
}

// NewDonationRecord validates an event and converts it into a row.
func NewDonationRecord(event *events.DonationEvent) (*DonationRecord, error) {
	if event.DonationID <= 0 {
		return nil, fmt.Errorf("%w: donation id is required", ErrInvalidEvent)
	}
	if event.CampaignID <= 0 {
		return nil, fmt.Errorf("%w: campaign id is required", ErrInvalidEvent)
	}
	if event.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrInvalidEvent)
	}

	switch event.EventType {
	case events.EventTypeDonationCompleted:
		if event.TransactionID == nil || *event.TransactionID == "" {
			return nil, fmt.Errorf("%w: completed donation without transaction id", ErrInvalidEvent)
		}
	case events.EventTypeDonationFailed:
	default:
		return nil, fmt.Errorf("%w: unsupported event type %q", ErrInvalidEvent, event.EventType)
	}

	amount, err := decimal.NewFromString(event.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrInvalidEvent, err)
	}

	occurredAt, err := time.Parse(time.RFC3339, event.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidEvent, err)
	}

	return &DonationRecord{
		EventID:       event.EventID,
		DonationID:    event.DonationID,
		CampaignID:    event.CampaignID,
		DonorID:       event.DonorID,
		Amount:        amount,
		Currency:      event.Currency,
		Status:        event.Status,
		TransactionID: event.TransactionID,
		OccurredAt:    occurredAt.UTC(),
	}, nil
}
