package auth

import (
	"context"

	"emaintenance/internal/models"
)

type ctxKey string

const claimsKey ctxKey = "authClaims"

type Claims struct {
	UserID   string
	Email    string
	Username string
	Role     models.Role
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(claimsKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func UserID(ctx context.Context) string {
	return FromContext(ctx).UserID
}
