package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits a donation amount may carry.
// Amounts are stored as NUMERIC(19, 4) and rendered with exactly this many digits.
const AmountScale = 4

// Donation represents a single pledge-to-transfer tracked through a funds check
// and a transaction. It is owned by the DonationService; callers only ever see copies.
type Donation struct {
	ID             int64           // Store-assigned identifier, immutable once set
	DonorID        int64           // Account the funds are taken from
	CampaignID     int64           // Account the funds are sent to
	Amount         decimal.Decimal // Positive, at most AmountScale fractional digits
	Currency       string          // ISO 4217 currency code (e.g., "USD")
	Status         DonationStatus  // Current lifecycle status
	TransactionID  *string         // Set exactly once, when the donation reaches COMPLETED
	IdempotencyKey *string         // Optional caller-supplied deduplication key
	CreatedAt      time.Time       // Timestamp when the donation was recorded
	UpdatedAt      time.Time       // Timestamp of the last status transition
}

// DonationRequest carries the caller's input for ProcessDonation.
type DonationRequest struct {
	DonorID        int64
	CampaignID     int64
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string // Empty when the caller does not need idempotent retries
}

// DonationStatus represents the possible states of a donation.
type DonationStatus string

const (
	// DonationStatusPending indicates the donation is recorded but no transaction was attempted yet
	DonationStatusPending DonationStatus = "PENDING"

	// DonationStatusProcessing indicates a transaction attempt may be in flight
	DonationStatusProcessing DonationStatus = "PROCESSING"

	// DonationStatusCompleted indicates the transaction was confirmed
	DonationStatusCompleted DonationStatus = "COMPLETED"

	// DonationStatusFailed indicates the transaction was declined, errored, or never attempted
	DonationStatusFailed DonationStatus = "FAILED"
)

// ParseDonationStatus converts a stored or user-supplied value into a DonationStatus.
func ParseDonationStatus(value string) (DonationStatus, error) {
	switch status := DonationStatus(value); status {
	case DonationStatusPending, DonationStatusProcessing, DonationStatusCompleted, DonationStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown donation status %q", value)
	}
}

// IsTerminal reports whether no further transition is permitted from s.
func (s DonationStatus) IsTerminal() bool {
	return s == DonationStatusCompleted || s == DonationStatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
//
//	PENDING    -> PROCESSING | FAILED
//	PROCESSING -> COMPLETED | FAILED
//
// PENDING -> FAILED is only taken when the in-flight marker could not be persisted.
func (s DonationStatus) CanTransitionTo(next DonationStatus) bool {
	switch s {
	case DonationStatusPending:
		return next == DonationStatusProcessing || next == DonationStatusFailed
	case DonationStatusProcessing:
		return next == DonationStatusCompleted || next == DonationStatusFailed
	default:
		return false
	}
}

// Predecessors returns every status from which next may be reached.
// Stores use it to guard status updates so terminal rows never change.
func (s DonationStatus) Predecessors() []DonationStatus {
	var out []DonationStatus
	for _, candidate := range []DonationStatus{
		DonationStatusPending,
		DonationStatusProcessing,
		DonationStatusCompleted,
		DonationStatusFailed,
	} {
		if candidate.CanTransitionTo(s) {
			out = append(out, candidate)
		}
	}
	return out
}

// NewDonation creates a new Donation from a validated request.
// The donation is created in PENDING status and has no ID until the store assigns one.
func NewDonation(req DonationRequest, now time.Time) *Donation {
	donation := &Donation{
		DonorID:    req.DonorID,
		CampaignID: req.CampaignID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     DonationStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		donation.IdempotencyKey = &key
	}
	return donation
}

// SameRequest reports whether req asks for the same donation that d records.
func (d *Donation) SameRequest(req DonationRequest) bool {
	return d.DonorID == req.DonorID &&
		d.CampaignID == req.CampaignID &&
		d.Amount.Equal(req.Amount) &&
		d.Currency == req.Currency
}

// MarkProcessing records that a transaction attempt is about to start.
func (d *Donation) MarkProcessing(at time.Time) error {
	return d.transition(DonationStatusProcessing, at)
}

// MarkCompleted records the confirmed transaction identifier.
func (d *Donation) MarkCompleted(transactionID string, at time.Time) error {
	if transactionID == "" {
		return fmt.Errorf("%w: completion requires a transaction id", ErrInvalidTransition)
	}
	if err := d.transition(DonationStatusCompleted, at); err != nil {
		return err
	}
	d.TransactionID = &transactionID
	return nil
}

// MarkFailed marks the donation as failed.
func (d *Donation) MarkFailed(at time.Time) error {
	return d.transition(DonationStatusFailed, at)
}

func (d *Donation) transition(next DonationStatus, at time.Time) error {
	if !d.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, next)
	}
	d.Status = next
	d.UpdatedAt = at
	return nil
}

// FormatAmount renders an amount with exactly AmountScale fractional digits.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}
