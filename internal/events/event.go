package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Jung028/donation-platform/internal/domain"
)

// Event types carried in DonationEvent.EventType.
const (
	EventTypeDonationCompleted = "donation.completed"
	EventTypeDonationFailed    = "donation.failed"
)

// Default routing keys on the donations exchange.
const (
	RoutingKeyCompleted = "donations.completed"
	RoutingKeyFailed    = "donations.failed"
)

// DonationEvent is the payload published when a donation reaches a terminal status.
type DonationEvent struct {
	EventID        string  `json:"eventId"`
	EventType      string  `json:"eventType"`
	EventTimestamp string  `json:"eventTimestamp"`
	DonationID     int64   `json:"donationId"`
	DonorID        int64   `json:"donorId"`
	CampaignID     int64   `json:"campaignId"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	TransactionID  *string `json:"transactionId"`
	IdempotencyKey string  `json:"idempotencyKey,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

// NewDonationEvent builds the event for a terminal donation.
func NewDonationEvent(donation *domain.Donation, now time.Time) (*DonationEvent, error) {
	eventType, err := EventTypeFor(donation.Status)
	if err != nil {
		return nil, err
	}

	event := &DonationEvent{
		EventID:        uuid.New().String(),
		EventType:      eventType,
		EventTimestamp: now.UTC().Format(time.RFC3339),
		DonationID:     donation.ID,
		DonorID:        donation.DonorID,
		CampaignID:     donation.CampaignID,
		Amount:         domain.FormatAmount(donation.Amount),
		Currency:       donation.Currency,
		Status:         string(donation.Status),
		TransactionID:  donation.TransactionID,
		Timestamp:      donation.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if donation.IdempotencyKey != nil {
		event.IdempotencyKey = *donation.IdempotencyKey
	}
	return event, nil
}

// EventTypeFor maps a terminal status to its event type.
func EventTypeFor(status domain.DonationStatus) (string, error) {
	switch status {
	case domain.DonationStatusCompleted:
		return EventTypeDonationCompleted, nil
	case domain.DonationStatusFailed:
		return EventTypeDonationFailed, nil
	default:
		return "", fmt.Errorf("no event for non-terminal status %s", status)
	}
}

// RoutingKeyFor maps an event type to its routing key.
func RoutingKeyFor(eventType string) string {
	if eventType == EventTypeDonationFailed {
		return RoutingKeyFailed
	}
	return RoutingKeyCompleted
}

// PartitionKey keeps every event of a campaign on the same partition.
func (e *DonationEvent) PartitionKey() string {
	return strconv.FormatInt(e.CampaignID, 10)
}
