package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/models"
	"github.com/ternarybob/reclaim/internal/services/verify"
)

// VerifyHandler serves synchronous booking verification
type VerifyHandler struct {
	verifyService *verify.Service
	logger        arbor.ILogger
}

// NewVerifyHandler creates a verify handler
func NewVerifyHandler(verifyService *verify.Service, logger arbor.ILogger) *VerifyHandler {
	return &VerifyHandler{verifyService: verifyService, logger: logger}
}

// VerifyHandler checks a booking against the retrieve-booking page and
// answers in the same request. Not-found is a 200 with verified false; only
// a run that never reached a verdict is a 500.
// POST /api/verify
func (h *VerifyHandler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	result, err := h.verifyService.Verify(r.Context(), &req)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("booking_code", req.BookingCode).Msg("Verification run failed")
		WriteJSON(w, http.StatusInternalServerError, result)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
