package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// validateIDToken is swapped out in tests.
var validateIDToken = idtoken.Validate

// PubSubAuthMiddleware checks the OIDC token Pub/Sub attaches to push
// requests: it must be issued for audience and carry expectedEmail.
// Authentication is skipped when isLocalDev is set, for the emulator.
func PubSubAuthMiddleware(isLocalDev bool, audience, expectedEmail string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLocalDev {
				logger.Debug().Msg("Skipping Pub/Sub authentication for local environment")
				next.ServeHTTP(w, r)
				return
			}
			if audience == "" || expectedEmail == "" {
				logger.Error().Msg("Pub/Sub push auth has no audience or service account configured; denying")
				writeUnauthorized(w, "Unauthorized")
				return
			}

			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				logger.Warn().Msg("Missing or malformed Authorization header on Pub/Sub push")
				writeUnauthorized(w, "Unauthorized")
				return
			}

			payload, err := validateIDToken(r.Context(), parts[1], audience)
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid Pub/Sub push token")
				writeUnauthorized(w, "Unauthorized")
				return
			}
			email, _ := payload.Claims["email"].(string)
			if email != expectedEmail {
				logger.Warn().Str("token_email", email).Msg("Pub/Sub push token from unexpected service account")
				writeJSONError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
