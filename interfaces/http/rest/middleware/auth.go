// Package middleware provides the HTTP middleware chain: authentication,
// request logging and request metrics.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"
	appErrors "fleetgrid-backend/pkg/errors"

	"go.uber.org/zap"
)

// Authenticate gates every protected route: bearer extraction, revocation
// check, signature validation, then user context injection. The revocation
// check runs before signature validation so a revoked token is rejected even
// when the secret has rotated since issuance.
func Authenticate(validator *auth.TokenValidator, revocations *session.RevocationRegistry, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := BearerToken(r)
			if rawToken == "" {
				common.RespondAppError(w, appErrors.NewUnauthorizedError("missing authentication token"))
				return
			}

			if revocations.IsRevoked(r.Context(), rawToken) {
				common.RespondAppError(w, appErrors.NewUnauthorizedError("token revoked"))
				return
			}

			claims, err := validator.ValidateToken(rawToken)
			if err != nil {
				logger.Debug("Token validation failed",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					common.RespondAppError(w, appErrors.NewUnauthorizedError("token has expired"))
				case errors.Is(err, auth.ErrInvalidSignature):
					common.RespondAppError(w, appErrors.NewUnauthorizedError("invalid token signature"))
				default:
					common.RespondAppError(w, appErrors.NewUnauthorizedError("invalid token"))
				}
				return
			}

			userCtx := &auth.UserContext{
				UserID:         claims.Subject,
				Role:           claims.Role,
				OrganizationID: claims.OrganizationID,
			}

			ctx := auth.SetUserInContext(r.Context(), userCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the raw bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(header)
}
