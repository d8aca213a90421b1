// Package auth validates bearer tokens issued for task tracker users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token validation errors.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidClaims   = errors.New("invalid claims")
	ErrMissingSubject  = errors.New("missing subject claim")
	ErrInvalidSubject  = errors.New("subject is not a user id")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
	ErrMissingSecret   = errors.New("jwt secret is required")
)

// DefaultLeeway is the clock skew tolerance.
const DefaultLeeway = 30 * time.Second

// Claims are the validated token claims.
type Claims struct {
	UserID    int64
	Subject   string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Validator validates bearer tokens.
type Validator interface {
	Validate(ctx context.Context, tokenString string) (*Claims, error)

	// Close releases background resources.
	Close() error
}

// Options are the checks shared by all validators.
type Options struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

func (o Options) parserOptions(methods ...string) []jwt.ParserOption {
	leeway := o.Leeway
	if leeway == 0 {
		leeway = DefaultLeeway
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods(methods),
	}
	if o.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.Issuer))
	}
	if o.Audience != "" {
		opts = append(opts, jwt.WithAudience(o.Audience))
	}
	return opts
}

func parse(tokenString string, keyFunc jwt.Keyfunc, opts []jwt.ParserOption) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, keyFunc, opts...)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return extractClaims(mapClaims)
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrInvalidIssuer, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %w", ErrInvalidAudience, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}

// extractClaims reads the subject as a positive numeric user id.
func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMissingSubject
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubject, sub)
	}

	c := &Claims{
		UserID:  userID,
		Subject: sub,
	}
	c.Name, _ = claims["name"].(string)
	if iat, iatErr := claims.GetIssuedAt(); iatErr == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
