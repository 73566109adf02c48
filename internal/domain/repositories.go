package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DonationStore defines the interface for donation data access operations.
// This follows the Repository pattern to abstract data persistence logic.
type DonationStore interface {
	// Insert persists a new donation and returns its store-assigned ID.
	// Returns ErrDuplicateIdempotencyKey if the donation's idempotency key is already taken.
	Insert(ctx context.Context, donation *Donation) (int64, error)

	// UpdateStatus atomically moves a donation to status.
	// The update only applies when the stored status is a legal predecessor of status;
	// otherwise ErrInvalidTransition is returned. Unknown IDs yield ErrDonationNotFound.
	UpdateStatus(ctx context.Context, id int64, status DonationStatus, transactionID *string, updatedAt time.Time) error

	// GetByID retrieves a donation by its unique identifier.
	GetByID(ctx context.Context, id int64) (*Donation, error)

	// GetByIdempotencyKey retrieves a donation by its idempotency key.
	// Returns nil if no donation is found with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Donation, error)

	// ListByDonor returns every donation made by donorID, oldest first.
	ListByDonor(ctx context.Context, donorID int64) ([]*Donation, error)

	// ListByCampaign returns every donation made to campaignID, oldest first.
	ListByCampaign(ctx context.Context, campaignID int64) ([]*Donation, error)

	// ListByStatus returns every donation currently in status, oldest first.
	ListByStatus(ctx context.Context, status DonationStatus) ([]*Donation, error)
}

// AccountValidator answers whether an account can afford an amount.
// A transport failure is reported as an error, distinct from a false verdict.
type AccountValidator interface {
	CheckFunds(ctx context.Context, accountID int64, amount decimal.Decimal, currency string) (bool, error)
}

// TransactionRequest describes a funds movement between two accounts.
type TransactionRequest struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Currency             string
	Description          string
}

// TransactionResult is the collaborator's answer to a TransactionRequest.
// An empty TransactionID means the collaborator did not move funds.
// Amount and Currency echo what was moved; they are zero when the collaborator omits them.
type TransactionResult struct {
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	Currency      string
}

// MatchesRequest reports whether the echoed amount and currency agree with donation.
// Omitted fields are not compared.
func (r *TransactionResult) MatchesRequest(donation *Donation) bool {
	if !r.Amount.IsZero() && !r.Amount.Equal(donation.Amount) {
		return false
	}
	return r.Currency == "" || r.Currency == donation.Currency
}

// TransactionExecutor moves funds. Implementations must not retry internally.
type TransactionExecutor interface {
	CreateTransaction(ctx context.Context, req TransactionRequest) (*TransactionResult, error)
}

// EventPublisher publishes donation lifecycle events to external systems (e.g. RabbitMQ).
type EventPublisher interface {
	PublishDonationEvent(ctx context.Context, donation *Donation) error
}

// FundsCompensator releases anything the funds check may have held
// once a donation ends up FAILED.
type FundsCompensator interface {
	ReleaseFunds(ctx context.Context, donation *Donation) error
}

// NoopCompensator is the default FundsCompensator. The account service's funds
// check is advisory and reserves nothing, so there is nothing to release.
type NoopCompensator struct{}

// ReleaseFunds implements FundsCompensator.
func (NoopCompensator) ReleaseFunds(context.Context, *Donation) error {
	return nil
}
