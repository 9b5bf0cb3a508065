package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"studybuddy/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

// UserIDFromContext returns the authenticated student id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserContextKey).(string)
	return id, ok && id != ""
}

// AuthMiddleware validates the bearer JWT and stores its subject as the
// student id on the request context.
func AuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug().Msg("Authorization header missing")
				writeUnauthorized(w, "Authorization header missing")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug().Msg("Invalid authorization header")
				writeUnauthorized(w, "Invalid authorization header")
				return
			}
			claims, err := util.ValidateJWT(parts[1], jwtSecret)
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid token")
				writeUnauthorized(w, "Invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CronSecretMiddleware guards internal scheduler endpoints. An empty secret
// disables them entirely.
func CronSecretMiddleware(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Cron-Secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Msg("Rejected internal request")
				writeUnauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + msg + `"}`))
}
