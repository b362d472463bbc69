package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"miw/pkg/requestcontext"
)

// Identity is the authenticated caller as seen by this service: a business
// partner number vouched for by the identity provider.
type Identity struct {
	BPN     string
	Subject string
}

// IdentityValidator validates a bearer token from the identity provider.
type IdentityValidator interface {
	ValidateToken(token string) (*Identity, error)
}

// RequireAuth validates the Authorization header and stores the caller's BPN
// in the request context. Requests without a valid bearer token get 401.
func RequireAuth(validator IdentityValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "missing bearer token",
					"request_id", requestcontext.RequestID(ctx))
				unauthorized(w, "missing or malformed Authorization header")
				return
			}

			identity, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "bearer token rejected",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCallerBPN(ctx, identity.BPN)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
