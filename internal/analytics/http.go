package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jung028/donation-platform/internal/models"
)

// SummaryProvider answers campaign summary queries
type SummaryProvider interface {
	CampaignSummary(ctx context.Context, campaignID int64) (*CampaignSummary, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter exposes campaign summaries and a health check.
func NewRouter(summaries SummaryProvider, health Pinger, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health.Ping(r.Context()); err != nil {
			sendError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/campaigns/{campaignId}/summary", func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := strconv.ParseInt(chi.URLParam(r, "campaignId"), 10, 64)
		if err != nil || campaignID <= 0 {
			sendError(w, http.StatusBadRequest, "INVALID_PARAMETER", "campaignId must be a positive integer")
			return
		}

		summary, err := summaries.CampaignSummary(r.Context(), campaignID)
		if err != nil {
			logger.Error().Err(err).Int64("campaign_id", campaignID).Msg("failed to load campaign summary")
			sendError(w, http.StatusServiceUnavailable, "ANALYTICS_UNAVAILABLE", "campaign summary is unavailable")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(summary)
	})

	return r
}

func sendError(w http.ResponseWriter, statusCode int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.BaseError{
		Code:        code,
		Description: &description,
		Id:          uuid.New(),
	})
}
