package server

import "github.com/Jung028/donation-platform/internal/models"

// Type aliases to make generated server code work with models package
type (
	DonationIdParam      = models.DonationIdParam
	DonorIdParam         = models.DonorIdParam
	CampaignIdParam      = models.CampaignIdParam
	CreateDonationParams = models.CreateDonationParams
	IdempotencyKeyHeader = models.IdempotencyKeyHeader
)
