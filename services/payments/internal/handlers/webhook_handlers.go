package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

const maxWebhookBody = 1 << 20

// StripeWebhook verifies and reconciles one provider delivery. A 500 asks
// the provider to redeliver; anything already applied is skipped then.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read request body", "INVALID_INPUT")
		return
	}

	ev, err := h.verifier.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			logger.WarnContext(r.Context(), "Rejected webhook with invalid signature", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid signature", "INVALID_SIGNATURE")
		default:
			logger.WarnContext(r.Context(), "Rejected malformed webhook", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid payload", "INVALID_INPUT")
		}
		return
	}

	// The provider may drop the connection early; processing must still
	// run to completion once started.
	ctx := context.WithoutCancel(r.Context())

	seen, err := h.dedupe.Seen(ctx, ev.ID)
	if err != nil {
		logger.WarnContext(ctx, "Webhook dedupe lookup failed", "error", err, "event_id", ev.ID)
	} else if seen {
		logger.InfoContext(ctx, "Skipping already processed webhook", "event_id", ev.ID)
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
		return
	}

	if err := h.reconciler.Dispatch(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "Failed to process webhook",
			"error", err, "event_id", ev.ID, "event_type", ev.Type)
		writeError(w, http.StatusInternalServerError, "Failed to process event", "INTERNAL_ERROR")
		return
	}

	if err := h.dedupe.MarkProcessed(ctx, ev.ID); err != nil {
		logger.WarnContext(ctx, "Failed to mark webhook processed", "error", err, "event_id", ev.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
