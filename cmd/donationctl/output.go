package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jung028/donation-platform/internal/domain"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// donationView is the operator-facing rendering of a donation.
type donationView struct {
	ID             int64   `json:"id" yaml:"id"`
	DonorID        int64   `json:"donorId" yaml:"donorId"`
	CampaignID     int64   `json:"campaignId" yaml:"campaignId"`
	Amount         string  `json:"amount" yaml:"amount"`
	Currency       string  `json:"currency" yaml:"currency"`
	Status         string  `json:"status" yaml:"status"`
	TransactionID  *string `json:"transactionId,omitempty" yaml:"transactionId,omitempty"`
	IdempotencyKey *string `json:"idempotencyKey,omitempty" yaml:"idempotencyKey,omitempty"`
	CreatedAt      string  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      string  `json:"updatedAt" yaml:"updatedAt"`
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func renderDonations(w io.Writer, format string, donations []*domain.Donation) error {
	views := make([]donationView, 0, len(donations))
	for _, d := range donations {
		views = append(views, donationView{
			ID:             d.ID,
			DonorID:        d.DonorID,
			CampaignID:     d.CampaignID,
			Amount:         domain.FormatAmount(d.Amount),
			Currency:       d.Currency,
			Status:         string(d.Status),
			TransactionID:  d.TransactionID,
			IdempotencyKey: d.IdempotencyKey,
			CreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:      d.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No donations found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONOR\tCAMPAIGN\tAMOUNT\tSTATUS\tTRANSACTION\tUPDATED")
	for _, v := range views {
		tx := "-"
		if v.TransactionID != nil {
			tx = *v.TransactionID
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s %s\t%s\t%s\t%s\n",
			v.ID, v.DonorID, v.CampaignID, v.Amount, v.Currency, v.Status, tx, v.UpdatedAt)
	}
	return tw.Flush()
}
