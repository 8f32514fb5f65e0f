package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/models"
	"github.com/ternarybob/reclaim/internal/services/jobs"
)

// ClaimHandler accepts refund claim submissions
type ClaimHandler struct {
	jobService *jobs.Service
	logger     arbor.ILogger
}

// NewClaimHandler creates a claim handler
func NewClaimHandler(jobService *jobs.Service, logger arbor.ILogger) *ClaimHandler {
	return &ClaimHandler{jobService: jobService, logger: logger}
}

// SubmitHandler accepts a claim and returns the queued job receipt
// POST /api/claims
func (h *ClaimHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var claim models.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	job, err := h.jobService.Submit(r.Context(), &claim)
	if err != nil {
		var invalidReason *models.InvalidReasonError
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &invalidReason), errors.As(err, &validationErrs):
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, jobs.ErrQueueClosed):
			WriteError(w, http.StatusServiceUnavailable, "service shutting down")
		default:
			h.logger.Error().Err(err).Msg("Claim submission failed")
			WriteError(w, http.StatusInternalServerError, "failed to queue claim")
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.ID,
		"status":   job.Status,
		"claim_id": job.ClaimID,
	})
}
