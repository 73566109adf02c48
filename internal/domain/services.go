package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Timeouts bounds every external call made while processing a donation.
type Timeouts struct {
	FundsCheck  time.Duration
	Transaction time.Duration
	Store       time.Duration
}

// DefaultTimeouts are used for any zero field passed to WithTimeouts.
var DefaultTimeouts = Timeouts{
	FundsCheck:  5 * time.Second,
	Transaction: 15 * time.Second,
	Store:       5 * time.Second,
}

// Option configures optional DonationService collaborators.
type Option func(*DonationService)

// WithEventPublisher emits an event whenever a donation reaches a terminal status.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *DonationService) { s.eventPublisher = publisher }
}

// WithCompensator overrides the NoopCompensator invoked on FAILED donations.
func WithCompensator(compensator FundsCompensator) Option {
	return func(s *DonationService) { s.compensator = compensator }
}

// WithTimeouts overrides the per-call timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(s *DonationService) {
		if t.FundsCheck > 0 {
			s.timeouts.FundsCheck = t.FundsCheck
		}
		if t.Transaction > 0 {
			s.timeouts.Transaction = t.Transaction
		}
		if t.Store > 0 {
			s.timeouts.Store = t.Store
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *DonationService) { s.now = now }
}

// DonationService drives donations through the funds check, record creation,
// transaction and finalization steps, and owns the donation status state machine.
type DonationService struct {
	store          DonationStore
	accounts       AccountValidator
	transactions   TransactionExecutor
	eventPublisher EventPublisher
	compensator    FundsCompensator
	logger         zerolog.Logger
	timeouts       Timeouts
	now            func() time.Time
	publishing     sync.WaitGroup
}

// NewDonationService creates a new instance of DonationService.
func NewDonationService(
	store DonationStore,
	accounts AccountValidator,
	transactions TransactionExecutor,
	logger zerolog.Logger,
	opts ...Option,
) *DonationService {
	s := &DonationService{
		store:        store,
		accounts:     accounts,
		transactions: transactions,
		compensator:  NoopCompensator{},
		logger:       logger,
		timeouts:     DefaultTimeouts,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessDonation drives a single donation request to a terminal status.
//
// The sequence is:
// 1. Validate the request locally (no side effects)
// 2. Check the donor's funds with the account service (no side effects)
// 3. Record the donation as PENDING
// 4. Mark it PROCESSING
// 5. Execute the transaction and record COMPLETED or FAILED
//
// Once step 3 has committed, inbound cancellation is ignored and every handled
// failure still attempts a terminal write before the error is returned. Errors
// from that point on are *ProcessingError values carrying the best-known donation.
//
// When the request carries an idempotency key that was already used, the stored
// donation is replayed instead of running the sequence again.
func (s *DonationService) ProcessDonation(ctx context.Context, req DonationRequest) (*Donation, error) {
	if err := ValidateDonationRequest(req); err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Int64("donor_id", req.DonorID).
		Int64("campaign_id", req.CampaignID).
		Str("amount", FormatAmount(req.Amount)).
		Str("currency", req.Currency).
		Logger()

	if req.IdempotencyKey != "" {
		existing, err := s.lookupIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Info().Int64("donation_id", existing.ID).Msg("replaying donation for idempotency key")
			return replay(existing, req)
		}
	}

	if err := s.checkFunds(ctx, req, logger); err != nil {
		return nil, err
	}

	donation := NewDonation(req, s.now())
	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	id, err := s.store.Insert(storeCtx, donation)
	cancel()
	if err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// A concurrent request with the same key won the insert
			existing, lookupErr := s.lookupIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return replay(existing, req)
			}
		}
		logger.Error().Err(err).Msg("failed to create donation record")
		return nil, fmt.Errorf("%w: create donation: %v", ErrStorageUnavailable, err)
	}
	donation.ID = id

	logger = logger.With().Int64("donation_id", id).Logger()
	logger.Info().Msg("created donation record")

	// The record now promises the donor a donation; finish regardless of the caller.
	return s.execute(context.WithoutCancel(ctx), donation, logger)
}

// GetDonation retrieves a donation by its ID.
func (s *DonationService) GetDonation(ctx context.Context, id int64) (*Donation, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	donation, err := s.store.GetByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, ErrDonationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get donation: %v", ErrStorageUnavailable, err)
	}
	return donation, nil
}

// ListDonationsByDonor returns the donations made by a donor.
func (s *DonationService) ListDonationsByDonor(ctx context.Context, donorID int64) ([]*Donation, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	donations, err := s.store.ListByDonor(storeCtx, donorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list donations by donor: %v", ErrStorageUnavailable, err)
	}
	return donations, nil
}

// ListDonationsByCampaign returns the donations made to a campaign.
func (s *DonationService) ListDonationsByCampaign(ctx context.Context, campaignID int64) ([]*Donation, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	donations, err := s.store.ListByCampaign(storeCtx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%w: list donations by campaign: %v", ErrStorageUnavailable, err)
	}
	return donations, nil
}

// ListStaleDonations returns PENDING and PROCESSING donations whose last update is
// older than olderThan. These are left behind only by crashes and need an operator.
func (s *DonationService) ListStaleDonations(ctx context.Context, olderThan time.Duration) ([]*Donation, error) {
	cutoff := s.now().Add(-olderThan)

	var stale []*Donation
	for _, status := range []DonationStatus{DonationStatusPending, DonationStatusProcessing} {
		storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
		donations, err := s.store.ListByStatus(storeCtx, status)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: list %s donations: %v", ErrStorageUnavailable, status, err)
		}
		for _, d := range donations {
			if d.UpdatedAt.Before(cutoff) {
				stale = append(stale, d)
			}
		}
	}
	return stale, nil
}

// checkFunds calls the account service. Both a negative verdict and an
// unreachable service block the donation; only the log line differs.
func (s *DonationService) checkFunds(ctx context.Context, req DonationRequest, logger zerolog.Logger) error {
	checkCtx, cancel := context.WithTimeout(ctx, s.timeouts.FundsCheck)
	defer cancel()

	ok, err := s.accounts.CheckFunds(checkCtx, req.DonorID, req.Amount, req.Currency)
	if err != nil {
		logger.Warn().Err(err).Msg("funds check unavailable")
		return fmt.Errorf("%w: funds check unavailable", ErrInsufficientFunds)
	}
	if !ok {
		logger.Info().Msg("funds check denied")
		return ErrInsufficientFunds
	}
	return nil
}

// execute runs the post-commit part of the sequence. ctx must not be cancellable.
func (s *DonationService) execute(ctx context.Context, donation *Donation, logger zerolog.Logger) (*Donation, error) {
	if _, err := s.transition(ctx, donation, func(d *Donation, at time.Time) error {
		return d.MarkProcessing(at)
	}); err != nil {
		logger.Error().Err(err).Msg("failed to mark donation processing")
		// No transaction was attempted, so the donation can be closed out directly
		return s.fail(ctx, donation, fmt.Errorf("%w: mark processing: %v", ErrStorageUnavailable, err), logger)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeouts.Transaction)
	result, err := s.transactions.CreateTransaction(txCtx, TransactionRequest{
		SourceAccountID:      donation.DonorID,
		DestinationAccountID: donation.CampaignID,
		Amount:               donation.Amount,
		Currency:             donation.Currency,
		Description:          fmt.Sprintf("Donation to campaign %d", donation.CampaignID),
	})
	cancel()

	if err != nil {
		logger.Error().Err(err).Msg("transaction call failed")
		return s.fail(ctx, donation, fmt.Errorf("%w: %v", ErrTransactionFailed, err), logger)
	}
	if result == nil || result.TransactionID == "" {
		status := ""
		if result != nil {
			status = result.Status
		}
		logger.Warn().Str("transaction_status", status).Msg("transaction returned no identifier")
		return s.fail(ctx, donation, fmt.Errorf("%w: no transaction id returned", ErrTransactionFailed), logger)
	}

	logger = logger.With().Str("transaction_id", result.TransactionID).Logger()
	if !result.MatchesRequest(donation) {
		// The id is authoritative; the mismatch is left for reconciliation
		logger.Warn().
			Str("transaction_amount", FormatAmount(result.Amount)).
			Str("transaction_currency", result.Currency).
			Msg("transaction amount differs from donation")
	}

	attempted, err := s.transition(ctx, donation, func(d *Donation, at time.Time) error {
		return d.MarkCompleted(result.TransactionID, at)
	})
	if err != nil {
		// Funds moved but the row is stuck in PROCESSING; an operator reconciles it
		logger.Error().Err(err).Msg("transaction confirmed but completion could not be recorded")
		return attempted, &ProcessingError{
			DonationID: donation.ID,
			Donation:   attempted,
			Err:        fmt.Errorf("%w: record completion: %v", ErrStorageUnavailable, err),
		}
	}

	logger.Info().Msg("donation completed")
	s.publish(donation, logger)
	return donation, nil
}

// fail records FAILED, runs the compensation hook and builds the error returned to the caller.
func (s *DonationService) fail(ctx context.Context, donation *Donation, cause error, logger zerolog.Logger) (*Donation, error) {
	attempted, err := s.transition(ctx, donation, func(d *Donation, at time.Time) error {
		return d.MarkFailed(at)
	})
	if err != nil {
		logger.Error().Err(err).Str("status", string(donation.Status)).Msg("failed to record FAILED status")
		cause = errors.Join(cause, fmt.Errorf("%w: record failure: %v", ErrStorageUnavailable, err))
	} else {
		logger.Warn().Err(cause).Msg("donation failed")
		s.publish(donation, logger)
	}

	compCtx, cancel := context.WithTimeout(ctx, s.timeouts.Transaction)
	if compErr := s.compensator.ReleaseFunds(compCtx, attempted); compErr != nil {
		logger.Error().Err(compErr).Msg("funds compensation failed")
	}
	cancel()

	return attempted, &ProcessingError{DonationID: donation.ID, Donation: attempted, Err: cause}
}

// transition applies a state change to a copy of donation and persists it.
// donation is only updated once the store accepted the change, so it always
// mirrors the stored row. The attempted copy is returned in both cases.
func (s *DonationService) transition(ctx context.Context, donation *Donation, apply func(*Donation, time.Time) error) (*Donation, error) {
	next := *donation
	if err := apply(&next, s.now()); err != nil {
		return donation, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	if err := s.store.UpdateStatus(storeCtx, next.ID, next.Status, next.TransactionID, next.UpdatedAt); err != nil {
		return &next, err
	}

	*donation = next
	return &next, nil
}

// publish emits a lifecycle event without holding up the response.
// Delivery is best-effort; a broker outage must not fail a recorded donation.
func (s *DonationService) publish(donation *Donation, logger zerolog.Logger) {
	if s.eventPublisher == nil {
		return
	}

	snapshot := *donation
	s.publishing.Add(1)
	go func(d *Donation) {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.Store)
		defer cancel()
		if err := s.eventPublisher.PublishDonationEvent(ctx, d); err != nil {
			logger.Warn().Err(err).Msg("failed to publish donation event")
		}
	}(&snapshot)
}

func (s *DonationService) lookupIdempotencyKey(ctx context.Context, key string) (*Donation, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	defer cancel()

	donation, err := s.store.GetByIdempotencyKey(storeCtx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: check idempotency: %v", ErrStorageUnavailable, err)
	}
	return donation, nil
}

// replay answers a repeated request the way the original one ended.
// A key reused for a different donation is rejected without revealing the stored one.
func replay(existing *Donation, req DonationRequest) (*Donation, error) {
	if !existing.SameRequest(req) {
		return nil, fmt.Errorf("%w: idempotency key already used for a different donation", ErrInvalidRequest)
	}

	switch existing.Status {
	case DonationStatusCompleted:
		return existing, nil
	case DonationStatusFailed:
		return existing, &ProcessingError{
			DonationID: existing.ID,
			Donation:   existing,
			Err:        ErrTransactionFailed,
		}
	default:
		return existing, &ProcessingError{
			DonationID: existing.ID,
			Donation:   existing,
			Err:        ErrRequestInProgress,
		}
	}
}

// Drain waits for in-flight event publishes, or until ctx ends.
// Call it after the HTTP server stopped accepting requests and before closing the publisher.
func (s *DonationService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.publishing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
