package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "middleware-test-secret"

type authHarness struct {
	issuer      *auth.TokenIssuer
	handler     http.Handler
	revocations *session.RevocationRegistry
	captured    *auth.UserContext
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	issuer, err := auth.NewTokenIssuer(testSecret, "fleetgrid")
	require.NoError(t, err)
	validator, err := auth.NewTokenValidator(testSecret, "fleetgrid")
	require.NoError(t, err)

	revocations := session.NewRevocationRegistry(cache.NewMemoryCache(), zap.NewNop())

	h := &authHarness{issuer: issuer, revocations: revocations}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.GetUserFromContext(r.Context())
		require.NoError(t, err)
		h.captured = user
		w.WriteHeader(http.StatusOK)
	})
	h.handler = Authenticate(validator, revocations, zap.NewNop())(next)
	return h
}

func (h *authHarness) request(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_ValidToken(t *testing.T) {
	h := newAuthHarness(t)
	token, err := h.issuer.IssueAccessToken("user-1", "admin", "org-1")
	require.NoError(t, err)

	rec := h.request(token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.captured)
	assert.Equal(t, "user-1", h.captured.UserID)
	assert.Equal(t, "admin", h.captured.Role)
	assert.Equal(t, "org-1", h.captured.OrganizationID)
}

func TestAuthenticate_MissingToken(t *testing.T) {
	h := newAuthHarness(t)

	rec := h.request("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, h.captured)
}

func TestAuthenticate_RevokedToken(t *testing.T) {
	h := newAuthHarness(t)
	token, err := h.issuer.IssueAccessToken("user-1", "user", "org-1")
	require.NoError(t, err)

	require.NoError(t, h.revocations.Revoke(context.Background(), token))

	rec := h.request(token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body common.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token revoked", body.Error.Message)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	h := newAuthHarness(t)

	claims := auth.Claims{
		Role:           "user",
		OrganizationID: "org-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "fleetgrid",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-30 * time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := h.request(expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body common.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token has expired", body.Error.Message)
}

func TestAuthenticate_WrongSignature(t *testing.T) {
	h := newAuthHarness(t)

	foreign, err := auth.NewTokenIssuer("some-other-secret", "fleetgrid")
	require.NoError(t, err)
	token, err := foreign.IssueAccessToken("user-1", "user", "org-1")
	require.NoError(t, err)

	rec := h.request(token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", BearerToken(req))

	req.Header.Set("Authorization", "bearer abc123")
	assert.Equal(t, "abc123", BearerToken(req))

	// Raw tokens without a scheme are accepted as-is.
	req.Header.Set("Authorization", "abc123")
	assert.Equal(t, "abc123", BearerToken(req))

	req.Header.Del("Authorization")
	assert.Equal(t, "", BearerToken(req))
}
