package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/expertbook/pkg/auth"
	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
	"github.com/diagnosis/expertbook/services/payments/internal/service"
)

// Verifier authenticates a raw webhook delivery and decodes it.
type Verifier interface {
	Parse(payload []byte, signature string) (*domain.WebhookEvent, error)
}

type Handlers struct {
	reconciler service.Reconciler
	verifier   Verifier
	dedupe     repository.EventDedupe
	jwtSecret  string
}

func New(
	reconciler service.Reconciler,
	verifier Verifier,
	dedupe repository.EventDedupe,
	jwtSecret string,
) *Handlers {
	if dedupe == nil {
		dedupe = repository.NoopEventDedupe{}
	}
	return &Handlers{
		reconciler: reconciler,
		verifier:   verifier,
		dedupe:     dedupe,
		jwtSecret:  jwtSecret,
	}
}

type claimsKey struct{}

// RequireJWT rejects requests without a valid bearer token for the role.
// Admins pass every role check.
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.jwtSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != "admin" {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := logger.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response := map[string]string{
		"error": message,
		"code":  code,
	}
	writeJSON(w, statusCode, response)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
