package analytics

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Jung028/donation-platform/internal/domain"
)

// Repository handles donation event persistence in ClickHouse
type Repository struct {
	db *ClickHouseClient
}

// NewRepository creates a new donation event repository
func NewRepository(db *ClickHouseClient) *Repository {
	return &Repository{db: db}
}

// InsertDonation records a terminal donation outcome. Redelivered events
// collapse into one row per donation once ClickHouse merges parts.
func (r *Repository) InsertDonation(ctx context.Context, rec *DonationRecord) error {
	query := `
		INSERT INTO donation_events (
			event_id, donation_id, campaign_id, donor_id,
			amount, currency, status, transaction_id, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		rec.EventID,
		rec.DonationID,
		rec.CampaignID,
		rec.DonorID,
		rec.Amount,
		rec.Currency,
		rec.Status,
		rec.TransactionID,
		rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert donation %d: %w", rec.DonationID, err)
	}

	return nil
}

// CampaignSummary aggregates every recorded donation of a campaign.
func (r *Repository) CampaignSummary(ctx context.Context, campaignID int64) (*CampaignSummary, error) {
	query := `
		SELECT
			currency,
			count() AS donations,
			toString(sum(amount)) AS total
		FROM donation_events FINAL
		WHERE campaign_id = ? AND status = ?
		GROUP BY currency
		ORDER BY currency
	`

	rows, err := r.db.Conn().Query(ctx, query, campaignID, string(domain.DonationStatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign %d totals: %w", campaignID, err)
	}
	defer rows.Close()

	summary := &CampaignSummary{
		CampaignID: campaignID,
		Totals:     make([]CurrencyTotal, 0),
	}

	for rows.Next() {
		var total CurrencyTotal
		var amount string

		if err := rows.Scan(&total.Currency, &total.Donations, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan campaign total: %w", err)
		}

		// ClickHouse toString() drops trailing zeros
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid total %q: %w", amount, err)
		}
		total.Amount = domain.FormatAmount(value)

		summary.CompletedCount += total.Donations
		summary.Totals = append(summary.Totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaign totals: %w", err)
	}

	failedQuery := `
		SELECT count()
		FROM donation_events FINAL
		WHERE campaign_id = ? AND status = ?
	`
	row := r.db.Conn().QueryRow(ctx, failedQuery, campaignID, string(domain.DonationStatusFailed))
	if err := row.Scan(&summary.FailedCount); err != nil {
		return nil, fmt.Errorf("failed to count failed donations for campaign %d: %w", campaignID, err)
	}

	return summary, nil
}
