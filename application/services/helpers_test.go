package services

import (
	"time"

	"fleetgrid-backend/domain/entities"

	"github.com/google/uuid"
)

func newTestUser(name, email, orgID string) *entities.User {
	now := time.Now().UTC()
	return &entities.User{
		ID:             uuid.New().String(),
		Name:           name,
		Email:          email,
		PasswordHash:   "$2a$12$not-a-real-hash",
		Role:           entities.RoleUser,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
