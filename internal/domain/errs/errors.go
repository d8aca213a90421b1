// Package errs holds the sentinel errors shared by the domain, storage and transport layers.
package errs

import "errors"

var (
	// ErrNotFound is returned when a task, tag or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned on unique constraint collisions.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput is returned when a value fails domain validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when no usable identity is attached to a request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the identity may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrConcurrentModification is returned when the stored version no longer matches.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidState is returned when an operation does not apply to the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)
