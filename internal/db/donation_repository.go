package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jung028/donation-platform/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

const donationColumns = `id, donor_id, campaign_id, amount::text, currency, status, transaction_id, idempotency_key, created_at, updated_at`

// DonationRepository implements domain.DonationStore using PostgreSQL.
type DonationRepository struct {
	pool *pgxpool.Pool
}

// NewDonationRepository creates a new DonationRepository.
func NewDonationRepository(pool *pgxpool.Pool) *DonationRepository {
	return &DonationRepository{
		pool: pool,
	}
}

// Insert persists a new donation and returns its generated ID.
func (r *DonationRepository) Insert(ctx context.Context, donation *domain.Donation) (int64, error) {
	query := `
		INSERT INTO donations (
			donor_id, campaign_id, amount, currency, status,
			transaction_id, idempotency_key, created_at, updated_at
		)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		donation.DonorID,
		donation.CampaignID,
		donation.Amount.String(),
		donation.Currency,
		string(donation.Status),
		donation.TransactionID,
		donation.IdempotencyKey,
		donation.CreatedAt,
		donation.UpdatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, domain.ErrDuplicateIdempotencyKey
		}
		return 0, fmt.Errorf("failed to insert donation: %w", err)
	}

	return id, nil
}

// UpdateStatus moves a donation to status in a single guarded statement,
// so a terminal row is never overwritten.
func (r *DonationRepository) UpdateStatus(ctx context.Context, id int64, status domain.DonationStatus, transactionID *string, updatedAt time.Time) error {
	query := `
		UPDATE donations
		SET status = $2,
		    transaction_id = $3,
		    updated_at = $4
		WHERE id = $1 AND status = ANY($5)
	`

	predecessors := status.Predecessors()
	allowed := make([]string, 0, len(predecessors))
	for _, p := range predecessors {
		allowed = append(allowed, string(p))
	}

	q := conn(ctx, r.pool)
	result, err := q.Exec(ctx, query, id, string(status), transactionID, updatedAt, allowed)
	if err != nil {
		return fmt.Errorf("failed to update donation status: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM donations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check donation existence: %w", err)
	}
	if !exists {
		return domain.ErrDonationNotFound
	}
	return domain.ErrInvalidTransition
}

// GetByID retrieves a donation by its unique identifier.
func (r *DonationRepository) GetByID(ctx context.Context, id int64) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1`

	donation, err := scanDonation(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return donation, nil
}

// GetByIdempotencyKey retrieves a donation by its idempotency key.
// Returns nil if no donation is found with the given key.
func (r *DonationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE idempotency_key = $1`

	donation, err := scanDonation(conn(ctx, r.pool).QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get donation by idempotency key: %w", err)
	}
	return donation, nil
}

// ListByDonor returns every donation made by donorID.
func (r *DonationRepository) ListByDonor(ctx context.Context, donorID int64) ([]*domain.Donation, error) {
	return r.list(ctx, `SELECT `+donationColumns+` FROM donations WHERE donor_id = $1 ORDER BY id`, donorID)
}

// ListByCampaign returns every donation made to campaignID.
func (r *DonationRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]*domain.Donation, error) {
	return r.list(ctx, `SELECT `+donationColumns+` FROM donations WHERE campaign_id = $1 ORDER BY id`, campaignID)
}

// ListByStatus returns every donation currently in status.
func (r *DonationRepository) ListByStatus(ctx context.Context, status domain.DonationStatus) ([]*domain.Donation, error) {
	return r.list(ctx, `SELECT `+donationColumns+` FROM donations WHERE status = $1 ORDER BY id`, string(status))
}

// Ping checks that the database is reachable.
func (r *DonationRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *DonationRepository) list(ctx context.Context, query string, arg any) ([]*domain.Donation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	donations := make([]*domain.Donation, 0)
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, donation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}

	return donations, nil
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var (
		donation domain.Donation
		amount   string
		status   string
	)

	err := row.Scan(
		&donation.ID,
		&donation.DonorID,
		&donation.CampaignID,
		&amount,
		&donation.Currency,
		&status,
		&donation.TransactionID,
		&donation.IdempotencyKey,
		&donation.CreatedAt,
		&donation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if donation.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if donation.Status, err = domain.ParseDonationStatus(status); err != nil {
		return nil, err
	}

	return &donation, nil
}
