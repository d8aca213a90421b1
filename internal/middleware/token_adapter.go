package middleware

import (
	"context"
	"errors"

	"github.com/lllypuk/tasktracker/internal/infrastructure/auth"
)

// ValidatorAdapter adapts auth.Validator to the TokenValidator interface.
type ValidatorAdapter struct {
	validator auth.Validator
}

// NewValidatorAdapter wraps validator. It panics on nil.
func NewValidatorAdapter(validator auth.Validator) *ValidatorAdapter {
	if validator == nil {
		panic("token validator is required")
	}
	return &ValidatorAdapter{validator: validator}
}

// ValidateToken validates a bearer token.
func (a *ValidatorAdapter) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := a.validator.Validate(ctx, token)
	if err != nil {
		return nil, mapValidatorError(err)
	}
	return &TokenClaims{
		UserID:    claims.UserID,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Close closes the underlying validator.
func (a *ValidatorAdapter) Close() error {
	return a.validator.Close()
}

func mapValidatorError(err error) error {
	if errors.Is(err, auth.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return errors.Join(ErrInvalidToken, err)
}
