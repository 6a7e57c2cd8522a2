// Package middleware provides HTTP middleware for the Plugmart server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/plugmart/plugmart/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// identityKey is the context key for the authenticated identity.
	identityKey contextKey = "identity"
)

// RequireAuth creates middleware that validates bearer tokens from the
// Authorization header. A missing token yields 401, an invalid or expired
// token 403; both bodies are JSON. On success the decoded claims are stored
// in the request context for downstream handlers.
func RequireAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			// Expect "Bearer <token>" format
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				writeError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			claims, err := tokens.Verify(parts[1])
			if err != nil {
				// Expired and malformed tokens are treated identically here;
				// the token service keeps them distinct for callers that care.
				writeError(w, http.StatusForbidden, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated identity from the request
// context, or nil when the route was not guarded.
func IdentityFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(identityKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// writeError emits the standard JSON failure shape used by every error path.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
