package services

import (
	"context"
	"time"

	"fleetgrid-backend/application/caching"
	"fleetgrid-backend/application/ports"
	"fleetgrid-backend/domain/entities"
	appErrors "fleetgrid-backend/pkg/errors"

	"go.uber.org/zap"
)

// UpdateProfileInput carries a profile mutation. Empty fields are left
// unchanged.
type UpdateProfileInput struct {
	Name  string `json:"name" validate:"omitempty,min=2,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

// UserService serves and mutates user profiles with a read-through cache in
// front of the store.
type UserService struct {
	users       ports.UserRepository
	cache       *caching.Manager
	invalidator *caching.Invalidator
	logger      *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users ports.UserRepository,
	cache *caching.Manager,
	invalidator *caching.Invalidator,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:       users,
		cache:       cache,
		invalidator: invalidator,
		logger:      logger,
	}
}

// GetProfile returns the user's profile and whether it came from cache.
func (s *UserService) GetProfile(ctx context.Context, userID string) (entities.Profile, bool, error) {
	return caching.ReadThrough(ctx, s.cache, "user", caching.UserProfileKey(userID), caching.UserProfileTTL,
		func(ctx context.Context) (entities.Profile, error) {
			user, err := s.users.FindByID(ctx, userID)
			if err != nil {
				return entities.Profile{}, err
			}
			if user == nil {
				return entities.Profile{}, appErrors.NewNotFoundError("user")
			}
			return user.Profile(), nil
		})
}

// UpdateProfile applies the mutation, then drops the cached profile so the
// next read reflects it.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entities.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, appErrors.NewNotFoundError("user")
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Email != "" {
		email := normalizeEmail(input.Email)
		if email != user.Email {
			existing, err := s.users.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, appErrors.NewConflictError("email already registered")
			}
			user.Email = email
		}
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	// Write committed; drop the stale entry before responding.
	if err := s.invalidator.InvalidateUserProfile(ctx, userID); err != nil {
		s.logger.Warn("Profile invalidation failed", zap.String("userID", userID), zap.Error(err))
	}

	profile := user.Profile()
	return &profile, nil
}
