// Package memory provides an in-process DonationStore for local runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Jung028/donation-platform/internal/domain"
)

// Store implements domain.DonationStore on top of a guarded map.
// Every read returns a copy, so callers never observe a half-applied update.
type Store struct {
	mu             sync.RWMutex
	nextID         int64
	donations      map[int64]*domain.Donation
	idempotencyIdx map[string]int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		donations:      make(map[int64]*domain.Donation),
		idempotencyIdx: make(map[string]int64),
	}
}

// Insert persists a new donation and assigns its ID.
func (s *Store) Insert(ctx context.Context, donation *domain.Donation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if donation.IdempotencyKey != nil {
		if _, taken := s.idempotencyIdx[*donation.IdempotencyKey]; taken {
			return 0, domain.ErrDuplicateIdempotencyKey
		}
	}

	s.nextID++
	stored := clone(donation)
	stored.ID = s.nextID
	s.donations[stored.ID] = stored
	if stored.IdempotencyKey != nil {
		s.idempotencyIdx[*stored.IdempotencyKey] = stored.ID
	}
	return stored.ID, nil
}

// UpdateStatus moves a donation to status if its current status allows it.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.DonationStatus, transactionID *string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.donations[id]
	if !ok {
		return domain.ErrDonationNotFound
	}
	if !stored.Status.CanTransitionTo(status) {
		return domain.ErrInvalidTransition
	}

	updated := clone(stored)
	updated.Status = status
	updated.TransactionID = cloneString(transactionID)
	updated.UpdatedAt = updatedAt
	s.donations[id] = updated
	return nil
}

// GetByID retrieves a donation by its unique identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.donations[id]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	return clone(stored), nil
}

// GetByIdempotencyKey retrieves a donation by its idempotency key, or nil.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idempotencyIdx[key]
	if !ok {
		return nil, nil
	}
	return clone(s.donations[id]), nil
}

// ListByDonor returns every donation made by donorID.
func (s *Store) ListByDonor(ctx context.Context, donorID int64) ([]*domain.Donation, error) {
	return s.filter(ctx, func(d *domain.Donation) bool { return d.DonorID == donorID })
}

// ListByCampaign returns every donation made to campaignID.
func (s *Store) ListByCampaign(ctx context.Context, campaignID int64) ([]*domain.Donation, error) {
	return s.filter(ctx, func(d *domain.Donation) bool { return d.CampaignID == campaignID })
}

// ListByStatus returns every donation currently in status.
func (s *Store) ListByStatus(ctx context.Context, status domain.DonationStatus) ([]*domain.Donation, error) {
	return s.filter(ctx, func(d *domain.Donation) bool { return d.Status == status })
}

// Ping always succeeds unless ctx is done.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) filter(ctx context.Context, keep func(*domain.Donation) bool) ([]*domain.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Donation, 0)
	for _, d := range s.donations {
		if keep(d) {
			out = append(out, clone(d))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Donation) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

func clone(d *domain.Donation) *domain.Donation {
	c := *d
	c.TransactionID = cloneString(d.TransactionID)
	c.IdempotencyKey = cloneString(d.IdempotencyKey)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
