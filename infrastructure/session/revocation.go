package session

import (
	"context"
	"time"

	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/pkg/auth"
	appErrors "fleetgrid-backend/pkg/errors"

	"go.uber.org/zap"
)

const revokedMarker = "revoked"

// RevocationRegistry marks individual access tokens as revoked before their
// natural expiry. A mark's TTL equals the token's remaining lifetime, so the
// cache purges it once the token would have expired anyway. Revocation is
// per-token: logout invalidates only the token presented.
type RevocationRegistry struct {
	cache  cache.Cache
	logger *zap.Logger
}

// NewRevocationRegistry creates a new revocation registry
func NewRevocationRegistry(c cache.Cache, logger *zap.Logger) *RevocationRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevocationRegistry{
		cache:  c,
		logger: logger,
	}
}

// Revoke stores the raw token string with a TTL equal to the seconds left
// until its embedded expiry. The expiry claim is decoded without verifying
// the signature. Tokens already past expiry fail with TokenAlreadyExpired
// and create no registry entry.
func (r *RevocationRegistry) Revoke(ctx context.Context, rawToken string) error {
	claims, err := auth.DecodeUnverified(rawToken)
	if err != nil {
		return appErrors.NewValidationError("invalid token")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return appErrors.NewTokenExpiredError()
	}

	if err := r.cache.Set(ctx, rawToken, []byte(revokedMarker), ttl); err != nil {
		return appErrors.NewCacheUnavailableError(err)
	}

	return nil
}

// IsRevoked reports whether the raw token has been revoked. Consulted on
// every authenticated request before handler dispatch. A registry lookup
// failure fails open (token treated as not revoked) so a cache outage does
// not lock every caller out; the degraded window is bounded by the 15-minute
// access token lifetime. See DESIGN.md.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, rawToken string) bool {
	_, found, err := r.cache.Get(ctx, rawToken)
	if err != nil {
		r.logger.Warn("Revocation lookup failed, failing open", zap.Error(err))
		return false
	}
	return found
}
