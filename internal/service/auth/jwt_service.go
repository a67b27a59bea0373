// Package auth issues and validates the bearer tokens that protect the
// job API.
package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing API bearer tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for subject, typically the
	// name of the client that will use it.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the provided token string and extracts the
	// claims. Expired tokens return ErrExpiredToken; anything else that does
	// not verify returns ErrInvalidToken.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of an access token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
