package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when a donation request fails local validation
	ErrInvalidRequest = errors.New("invalid donation request")

	// ErrInsufficientFunds is returned when the funds check is negative or unreachable
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStorageUnavailable is returned when the donation store cannot be written
	ErrStorageUnavailable = errors.New("donation storage unavailable")

	// ErrTransactionFailed is returned when the transaction collaborator declined or errored
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDonationNotFound is returned when a donation doesn't exist
	ErrDonationNotFound = errors.New("donation not found")

	// ErrInvalidTransition is returned when a status change violates the state machine
	ErrInvalidTransition = errors.New("invalid donation status transition")

	// ErrDuplicateIdempotencyKey is returned by stores when the idempotency key is already taken
	ErrDuplicateIdempotencyKey = errors.New("donation with idempotency key already exists")

	// ErrRequestInProgress is returned when a request is replayed while the original is not terminal yet
	ErrRequestInProgress = errors.New("donation request still in progress")
)

// ProcessingError is returned once a donation record exists and a later step failed.
// Donation holds the best-known state so callers can report it alongside the error.
type ProcessingError struct {
	DonationID int64
	Donation   *Donation
	Err        error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("donation %d: %v", e.DonationID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
