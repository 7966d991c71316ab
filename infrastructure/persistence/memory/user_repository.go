// Package memory provides in-memory repository implementations used by
// tests and local development.
package memory

import (
	"context"
	"sync"

	"fleetgrid-backend/domain/entities"
)

// UserRepository is an in-memory ports.UserRepository
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]entities.User
}

// NewUserRepository creates an empty in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]entities.User),
	}
}

// Create stores a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = *user
	return nil
}

// FindByID returns the user with the given id, or nil if absent
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := user
	return &copied, nil
}

// FindByEmail returns the user with the given email, or nil if absent
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, nil
}

// Update replaces the stored user
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = *user
	return nil
}
