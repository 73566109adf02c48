// Package models provides the request and response types of the donation HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Defines values for DonationStatus.
const (
	Pending    DonationStatus = "PENDING"
	Processing DonationStatus = "PROCESSING"
	Completed  DonationStatus = "COMPLETED"
	Failed     DonationStatus = "FAILED"
)

// BaseError defines model for BaseError.
type BaseError struct {
	// Code Machine readable error code
	Code string `json:"code"`

	// Description Human readable error description
	Description *string `json:"description,omitempty"`

	// Id Unique error occurrence identifier
	Id uuid.UUID `json:"id"`

	// DonationId Set when a donation record exists for the failed request
	DonationId *int64 `json:"donationId,omitempty"`

	// Donation Best-known state of that donation record
	Donation *Donation `json:"donation,omitempty"`
}

// CreateDonationRequest defines model for CreateDonationRequest.
type CreateDonationRequest struct {
	DonorId    int64           `json:"donorId"`
	CampaignId int64           `json:"campaignId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// Donation defines model for Donation.
type Donation struct {
	Id         int64          `json:"id"`
	DonorId    int64          `json:"donorId"`
	CampaignId int64          `json:"campaignId"`
	Amount     string         `json:"amount"`
	Currency   string         `json:"currency"`
	Status     DonationStatus `json:"status"`

	// TransactionId Present once the donation is COMPLETED
	TransactionId *string   `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DonationStatus defines model for DonationStatus.
type DonationStatus string

// DonationIdParam defines model for DonationIdParam.
type DonationIdParam = int64

// DonorIdParam defines model for DonorIdParam.
type DonorIdParam = int64

// CampaignIdParam defines model for CampaignIdParam.
type CampaignIdParam = int64

// IdempotencyKeyHeader defines model for IdempotencyKeyHeader.
type IdempotencyKeyHeader = string

// CreateDonationParams defines parameters for CreateDonation.
type CreateDonationParams struct {
	IdempotencyKey *IdempotencyKeyHeader `json:"Idempotency-Key,omitempty"`
}

// CreateDonationJSONRequestBody defines body for CreateDonation for application/json ContentType.
type CreateDonationJSONRequestBody = CreateDonationRequest
