package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jung028/donation-platform/internal/domain"
	"github.com/Jung028/donation-platform/internal/models"
	"github.com/Jung028/donation-platform/internal/server"
)

// DonationService is the part of domain.DonationService the HTTP layer needs.
type DonationService interface {
	ProcessDonation(ctx context.Context, req domain.DonationRequest) (*domain.Donation, error)
	GetDonation(ctx context.Context, id int64) (*domain.Donation, error)
	ListDonationsByDonor(ctx context.Context, donorID int64) ([]*domain.Donation, error)
	ListDonationsByCampaign(ctx context.Context, campaignID int64) ([]*domain.Donation, error)
}

// Handler implements the server.ServerInterface
type Handler struct {
	donations DonationService
	logger    zerolog.Logger
}

var _ server.ServerInterface = (*Handler)(nil)

// NewHandler creates a new Handler backed by the given donation service
func NewHandler(donations DonationService, logger zerolog.Logger) *Handler {
	return &Handler{
		donations: donations,
		logger:    logger,
	}
}

// CreateDonation handles donation requests
func (h *Handler) CreateDonation(w http.ResponseWriter, r *http.Request, params models.CreateDonationParams) {
	var body models.CreateDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body: "+err.Error(), nil)
		return
	}

	req := domain.DonationRequest{
		DonorID:    body.DonorId,
		CampaignID: body.CampaignId,
		Amount:     body.Amount,
		Currency:   body.Currency,
	}
	if params.IdempotencyKey != nil {
		req.IdempotencyKey = *params.IdempotencyKey
	}

	donation, err := h.donations.ProcessDonation(r.Context(), req)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	sendJSON(w, http.StatusCreated, toAPIDonation(donation))
}

// GetDonation returns a single donation
func (h *Handler) GetDonation(w http.ResponseWriter, r *http.Request, donationId models.DonationIdParam) {
	donation, err := h.donations.GetDonation(r.Context(), donationId)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, toAPIDonation(donation))
}

// ListDonationsByDonor returns every donation made by a donor
func (h *Handler) ListDonationsByDonor(w http.ResponseWriter, r *http.Request, donorId models.DonorIdParam) {
	donations, err := h.donations.ListDonationsByDonor(r.Context(), donorId)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, toAPIDonations(donations))
}

// ListDonationsByCampaign returns every donation made to a campaign
func (h *Handler) ListDonationsByCampaign(w http.ResponseWriter, r *http.Request, campaignId models.CampaignIdParam) {
	donations, err := h.donations.ListDonationsByCampaign(r.Context(), campaignId)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, toAPIDonations(donations))
}

// ParamErrorHandler renders parameter binding failures as BaseError responses.
func ParamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	sendErrorResponse(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), nil)
}

// handleDomainError converts domain errors to HTTP responses
func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var procErr *domain.ProcessingError
	var donation *domain.Donation
	if errors.As(err, &procErr) {
		donation = procErr.Donation
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), donation)
	case errors.Is(err, domain.ErrInsufficientFunds):
		sendErrorResponse(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error(), donation)
	case errors.Is(err, domain.ErrDonationNotFound):
		sendErrorResponse(w, http.StatusNotFound, "NOT_FOUND", err.Error(), donation)
	case errors.Is(err, domain.ErrRequestInProgress):
		sendErrorResponse(w, http.StatusConflict, "REQUEST_IN_PROGRESS", err.Error(), donation)
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logError(r, err)
		sendErrorResponse(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", err.Error(), donation)
	case errors.Is(err, domain.ErrTransactionFailed):
		sendErrorResponse(w, http.StatusBadGateway, "TRANSACTION_FAILED", err.Error(), donation)
	default:
		h.logError(r, err)
		sendErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", donation)
	}
}

func (h *Handler) logError(r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())
	if logger.GetLevel() == zerolog.Disabled {
		logger = &h.logger
	}
	logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
}

func toAPIDonation(d *domain.Donation) models.Donation {
	return models.Donation{
		Id:            d.ID,
		DonorId:       d.DonorID,
		CampaignId:    d.CampaignID,
		Amount:        domain.FormatAmount(d.Amount),
		Currency:      d.Currency,
		Status:        models.DonationStatus(d.Status),
		TransactionId: d.TransactionID,
		CreatedAt:     d.CreatedAt,
	}
}

func toAPIDonations(donations []*domain.Donation) []models.Donation {
	out := make([]models.Donation, 0, len(donations))
	for _, d := range donations {
		out = append(out, toAPIDonation(d))
	}
	return out
}

func sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendErrorResponse sends an error response in the expected format
func sendErrorResponse(w http.ResponseWriter, statusCode int, code, description string, donation *domain.Donation) {
	errorResp := models.BaseError{
		Code:        code,
		Description: &description,
		Id:          uuid.New(),
	}
	if donation != nil && donation.ID != 0 {
		id := donation.ID
		apiDonation := toAPIDonation(donation)
		errorResp.DonationId = &id
		errorResp.Donation = &apiDonation
	}

	sendJSON(w, statusCode, errorResp)
}
