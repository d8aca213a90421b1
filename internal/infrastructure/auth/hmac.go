package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMACValidator validates HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewHMACValidator creates a validator for the given secret.
func NewHMACValidator(secret string, options Options) (*HMACValidator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &HMACValidator{
		secret: []byte(secret),
		opts:   options.parserOptions(jwt.SigningMethodHS256.Alg()),
	}, nil
}

// Validate checks signature and registered claims.
func (v *HMACValidator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	return parse(tokenString, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts)
}

// Close is a no-op.
func (v *HMACValidator) Close() error { return nil }

// IssueHMACToken signs an HS256 token for userID. It is used by local tooling
// and tests; production tokens come from the identity provider.
func IssueHMACToken(secret string, userID int64, options Options, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    options.Issuer,
	}
	if options.Audience != "" {
		claims.Audience = jwt.ClaimStrings{options.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
