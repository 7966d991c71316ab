// Package session implements the refresh-token session store and the access
// token revocation registry on top of the key-value cache. Entry destruction
// is owned entirely by the cache's TTL mechanism.
package session

import (
	"context"
	"encoding/json"
	"time"

	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/pkg/auth"
	appErrors "fleetgrid-backend/pkg/errors"

	"go.uber.org/zap"
)

// RefreshTokenTTL is the absolute lifetime of a refresh session.
const RefreshTokenTTL = 7 * 24 * time.Hour

// Record is the session payload stored under the hashed refresh token.
type Record struct {
	UserID string `json:"user_id"`
}

// Store maps hashed refresh tokens to session records. A token moves from
// ISSUED to CONSUMED (deleted on redemption) or EXPIRED (deleted by the
// cache); redemption is single-use.
type Store struct {
	cache  cache.Cache
	logger *zap.Logger
}

// NewStore creates a new session store
func NewStore(c cache.Cache, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cache:  c,
		logger: logger,
	}
}

// Issue stores a session record under the hashed token with a 7-day TTL.
func (s *Store) Issue(ctx context.Context, hashedToken, userID string) error {
	payload, err := json.Marshal(Record{UserID: userID})
	if err != nil {
		return appErrors.NewInternalError("failed to encode session record").WithCause(err)
	}
	if err := s.cache.Set(ctx, hashedToken, payload, RefreshTokenTTL); err != nil {
		return appErrors.NewCacheUnavailableError(err)
	}
	return nil
}

// Redeem consumes a raw refresh token: it is hashed, looked up, and deleted
// before the caller issues a replacement pair. A token absent from the store
// (never issued, already consumed, or expired) fails with
// InvalidOrRevokedToken and the caller must re-authenticate.
//
// The read-then-delete is not guarded by a distributed lock; two concurrent
// redemptions racing between read and delete may both succeed. See DESIGN.md.
func (s *Store) Redeem(ctx context.Context, rawToken string) (string, error) {
	hashed := auth.HashToken(rawToken)

	payload, found, err := s.cache.Get(ctx, hashed)
	if err != nil {
		return "", appErrors.NewCacheUnavailableError(err)
	}
	if !found {
		return "", appErrors.NewInvalidRefreshTokenError()
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return "", appErrors.NewInternalError("corrupt session record").WithCause(err)
	}

	// Single use: consume before the new pair is issued so a replayed token
	// can never be redeemed again.
	if err := s.cache.Delete(ctx, hashed); err != nil {
		return "", appErrors.NewCacheUnavailableError(err)
	}

	return record.UserID, nil
}
