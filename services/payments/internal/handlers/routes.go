package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Routes mounts the webhook and the admin review API. Only the admin
// routes are reachable from browsers.
func (h *Handlers) Routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Post("/webhooks/stripe", h.StripeWebhook)

	r.Route("/admin/reviews", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(h.RequireJWT("admin"))
		r.Get("/", h.ListPendingReviews)
		r.Post("/{meetingID}/resolve", h.ResolveReview)
	})

	return r
}
