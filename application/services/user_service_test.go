package services

import (
	"context"
	"testing"

	"fleetgrid-backend/application/caching"
	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/infrastructure/persistence/memory"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserFixture(t *testing.T) (*UserService, *memory.UserRepository) {
	t.Helper()
	kv := cache.NewMemoryCache()
	logger := zap.NewNop()
	repo := memory.NewUserRepository()
	service := NewUserService(
		repo,
		caching.NewManager(kv, logger, nil),
		caching.NewInvalidator(kv, logger, nil),
		logger,
	)
	return service, repo
}

func seedUser(t *testing.T, repo *memory.UserRepository) string {
	t.Helper()
	ctx := context.Background()
	user := newTestUser("Ada", "ada@x.com", "org-1")
	require.NoError(t, repo.Create(ctx, user))
	return user.ID
}

func TestUserService_GetProfileCachesSecondRead(t *testing.T) {
	ctx := context.Background()
	service, repo := newUserFixture(t)
	userID := seedUser(t, repo)

	first, cached, err := service.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "ada@x.com", first.Email)

	second, cached, err := service.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
}

func TestUserService_GetProfileUnknownUser(t *testing.T) {
	ctx := context.Background()
	service, _ := newUserFixture(t)

	_, _, err := service.GetProfile(ctx, "nobody")
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestUserService_UpdateProfileInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	service, repo := newUserFixture(t)
	userID := seedUser(t, repo)

	_, cached, err := service.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.False(t, cached)

	updated, err := service.UpdateProfile(ctx, userID, UpdateProfileInput{Name: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.Name)

	profile, cached, err := service.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.False(t, cached, "update must drop the cached profile")
	assert.Equal(t, "Grace", profile.Name)
}

func TestUserService_UpdateProfileEmailConflict(t *testing.T) {
	ctx := context.Background()
	service, repo := newUserFixture(t)
	userID := seedUser(t, repo)

	other := newTestUser("Bob", "bob@x.com", "org-1")
	require.NoError(t, repo.Create(ctx, other))

	_, err := service.UpdateProfile(ctx, userID, UpdateProfileInput{Email: "bob@x.com"})
	require.Error(t, err)
	assert.True(t, appErrors.IsConflict(err))
}
