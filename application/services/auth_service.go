// Package services implements the application use cases on top of the
// repository ports, the cache layer and the session stores.
package services

import (
	"context"
	"strings"
	"time"

	"fleetgrid-backend/application/ports"
	"fleetgrid-backend/domain/entities"
	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/pkg/auth"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the work factor the rest of the fleet uses.
const bcryptCost = 12

// TokenPair is an access/refresh token pair returned by signup, login and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignupInput carries a new account registration.
type SignupInput struct {
	Name           string `json:"name" validate:"required,min=2,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	OrganizationID string `json:"organizationId" validate:"required"`
}

// AuthService handles account registration and the token lifecycle:
// issuing pairs, rotating refresh tokens and revoking access tokens.
type AuthService struct {
	users       ports.UserRepository
	issuer      *auth.TokenIssuer
	sessions    *session.Store
	revocations *session.RevocationRegistry
	logger      *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users ports.UserRepository,
	issuer *auth.TokenIssuer,
	sessions *session.Store,
	revocations *session.RevocationRegistry,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		issuer:      issuer,
		sessions:    sessions,
		revocations: revocations,
		logger:      logger,
	}
}

// Signup registers a new account and returns a fresh token pair. Email
// addresses are unique across the system.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*TokenPair, *entities.Profile, error) {
	email := normalizeEmail(input.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, appErrors.NewConflictError("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, appErrors.NewInternalError("failed to hash password").WithCause(err)
	}

	now := time.Now().UTC()
	user := &entities.User{
		ID:             uuid.New().String(),
		Name:           input.Name,
		Email:          email,
		PasswordHash:   string(hash),
		Role:           entities.RoleUser,
		OrganizationID: input.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered",
		zap.String("userID", user.ID),
		zap.String("orgID", user.OrganizationID),
	)

	profile := user.Profile()
	return pair, &profile, nil
}

// Login verifies credentials and returns a fresh token pair. Unknown email
// and wrong password produce the same error so the response does not reveal
// which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *entities.Profile, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, appErrors.NewUnauthorizedError("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, appErrors.NewUnauthorizedError("invalid credentials")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	profile := user.Profile()
	return pair, &profile, nil
}

// Refresh redeems a refresh token and rotates the pair. The presented token
// is consumed whether or not issuance of the replacement succeeds, so a
// replayed token always fails.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	userID, err := s.sessions.Redeem(ctx, rawRefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// The account vanished after the session was issued.
		return nil, appErrors.NewInvalidRefreshTokenError()
	}

	return s.issuePair(ctx, user)
}

// Logout revokes the presented access token for the remainder of its
// lifetime. An already-expired token fails with TokenExpired.
func (s *AuthService) Logout(ctx context.Context, rawAccessToken string) error {
	return s.revocations.Revoke(ctx, rawAccessToken)
}

func (s *AuthService) issuePair(ctx context.Context, user *entities.User) (*TokenPair, error) {
	accessToken, err := s.issuer.IssueAccessToken(user.ID, user.Role, user.OrganizationID)
	if err != nil {
		return nil, appErrors.NewInternalError("failed to issue access token").WithCause(err)
	}

	rawRefresh, hashedRefresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, appErrors.NewInternalError("failed to generate refresh token").WithCause(err)
	}

	if err := s.sessions.Issue(ctx, hashedRefresh, user.ID); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
