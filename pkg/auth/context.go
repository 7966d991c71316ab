package auth

import (
	"context"
	"errors"
)

// UserContext carries the authenticated caller through the request context
type UserContext struct {
	UserID         string
	Role           string
	OrganizationID string
}

type contextKey string

const userContextKey contextKey = "user"

// SetUserInContext adds the user context to the request context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, errors.New("no user in context")
	}
	return user, nil
}
