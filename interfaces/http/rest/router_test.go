package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetgrid-backend/application/caching"
	"fleetgrid-backend/application/jobs"
	"fleetgrid-backend/application/services"
	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/infrastructure/persistence/memory"
	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer wires the full API against in-memory backends.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	issuer, err := auth.NewTokenIssuer("router-test-secret", "fleetgrid")
	require.NoError(t, err)
	validator, err := auth.NewTokenValidator("router-test-secret", "fleetgrid")
	require.NoError(t, err)

	kv := cache.NewMemoryCache()
	manager := caching.NewManager(kv, logger, nil)
	invalidator := caching.NewInvalidator(kv, logger, nil)
	sessions := session.NewStore(kv, logger)
	revocations := session.NewRevocationRegistry(kv, logger)

	userRepo := memory.NewUserRepository()
	deviceRepo := memory.NewDeviceRepository()
	logRepo := memory.NewLogRepository()
	jobRepo := memory.NewExportJobRepository()

	deps := Deps{
		Auth:        services.NewAuthService(userRepo, issuer, sessions, revocations, logger),
		Users:       services.NewUserService(userRepo, manager, invalidator, logger),
		Devices:     services.NewDeviceService(deviceRepo, manager, invalidator, nil, logger),
		Analytics:   services.NewAnalyticsService(deviceRepo, logRepo, manager, invalidator, logger),
		Exports:     services.NewExportService(jobRepo, jobs.NewQueue(4), logger),
		Validator:   validator,
		Revocations: revocations,
		Logger:      logger,
	}

	server := httptest.NewServer(NewRouter(deps).Setup())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body interface{}) (*http.Response, common.APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope common.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func dataField(t *testing.T, envelope common.APIResponse, key string) string {
	t.Helper()
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", envelope.Data)
	value, _ := data[key].(string)
	return value
}

func TestAPI_AuthLifecycle(t *testing.T) {
	server := newTestServer(t)

	signup := map[string]string{
		"name":           "Ada",
		"email":          "ada@example.com",
		"password":       "correcthorse",
		"organizationId": "org-1",
	}
	resp, body := doJSON(t, server, http.MethodPost, "/auth/signup", "", signup)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	access := dataField(t, body, "accessToken")
	refresh := dataField(t, body, "refreshToken")
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	// The access token works against a protected route.
	resp, body = doJSON(t, server, http.MethodGet, "/users/profile", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	// Refresh rotates the pair; the old refresh token is spent.
	resp, body = doJSON(t, server, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := dataField(t, body, "refreshToken")
	require.NotEmpty(t, rotated)
	assert.NotEqual(t, refresh, rotated)

	resp, _ = doJSON(t, server, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Logout revokes the access token; subsequent calls are rejected.
	resp, _ = doJSON(t, server, http.MethodPost, "/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodGet, "/users/profile", access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_DeviceFlow(t *testing.T) {
	server := newTestServer(t)

	_, body := doJSON(t, server, http.MethodPost, "/auth/signup", "", map[string]string{
		"name":           "Grace",
		"email":          "grace@example.com",
		"password":       "correcthorse",
		"organizationId": "org-1",
	})
	access := dataField(t, body, "accessToken")

	resp, body := doJSON(t, server, http.MethodPost, "/devices/", access, map[string]string{
		"name": "thermo",
		"type": "sensor",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	device, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	deviceID, _ := device["id"].(string)
	require.NotEmpty(t, deviceID)

	// First listing fetches, second is served from cache.
	resp, body = doJSON(t, server, http.MethodGet, "/devices/", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, listing["cached"])

	_, body = doJSON(t, server, http.MethodGet, "/devices/", access, nil)
	listing, ok = body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, listing["cached"])

	resp, _ = doJSON(t, server, http.MethodPost, "/devices/"+deviceID+"/logs", access, map[string]interface{}{
		"event": "usage",
		"value": 7.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, server, http.MethodGet, "/devices/"+deviceID+"/usage?range=24h", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	usage, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, usage["cached"])

	resp, _ = doJSON(t, server, http.MethodDelete, "/devices/"+deviceID, access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodGet, "/devices/"+deviceID, access, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_UnauthenticatedRejected(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, server, http.MethodGet, "/devices/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
