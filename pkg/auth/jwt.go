package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// AccessTokenTTL is the fixed lifetime of issued access tokens.
const AccessTokenTTL = 15 * time.Minute

// Claims represents the access token claims
type Claims struct {
	Role           string `json:"role"`
	OrganizationID string `json:"org_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs short-lived access tokens with a server secret.
// The secret is provisioned through configuration and never defaulted
// in production.
type TokenIssuer struct {
	secretKey []byte
	issuer    string
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secretKey, issuer string) (*TokenIssuer, error) {
	if secretKey == "" {
		return nil, errors.New("secret key required")
	}
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}, nil
}

// IssueAccessToken issues a signed HS256 access token for the subject with
// a fixed 15-minute expiry.
func (i *TokenIssuer) IssueAccessToken(subjectID, role, orgID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:           role,
		OrganizationID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secretKey)
}

// TokenValidator handles access token validation
type TokenValidator struct {
	secretKey []byte
	issuer    string
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secretKey, issuer string) (*TokenValidator, error) {
	if secretKey == "" {
		return nil, errors.New("secret key required")
	}
	return &TokenValidator{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}, nil
}

// ValidateToken validates an access token and returns the claims
func (v *TokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return v.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}

	return claims, nil
}

// DecodeUnverified parses the token's claims without verifying the
// signature. Used on logout to read the expiry of the presented token;
// validity was already established by the auth middleware.
func DecodeUnverified(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
