package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// ListPendingReviews lists meetings whose conflict refund needs a human.
func (h *Handlers) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	items, err := h.reconciler.ListPendingReviews(r.Context(), limit, offset)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list pending reviews", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve reviews", "INTERNAL_ERROR")
		return
	}
	if items == nil {
		items = []domain.ReviewItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// ResolveReview marks a reviewed meeting refunded after a manual refund.
func (h *Handlers) ResolveReview(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil || claims.Role != "admin" {
		writeError(w, http.StatusForbidden, "Admin access required", "FORBIDDEN")
		return
	}

	meetingID := chi.URLParam(r, "meetingID")
	if meetingID == "" {
		writeError(w, http.StatusBadRequest, "Invalid meeting ID", "INVALID_INPUT")
		return
	}

	err := h.reconciler.ResolveReview(r.Context(), meetingID, claims.Sub)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"meeting_id":     meetingID,
			"payment_status": string(domain.PaymentRefunded),
		})
	case errors.Is(err, domain.ErrMeetingNotFound):
		writeError(w, http.StatusNotFound, "Meeting not found", "NOT_FOUND")
	case errors.Is(err, domain.ErrReviewNotPending):
		writeError(w, http.StatusConflict, "Meeting is not awaiting review", "CONFLICT")
	default:
		logger.ErrorContext(r.Context(), "Failed to resolve review", "error", err, "meeting_id", meetingID)
		writeError(w, http.StatusInternalServerError, "Failed to resolve review", "INTERNAL_ERROR")
	}
}
