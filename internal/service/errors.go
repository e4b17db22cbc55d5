package service

import (
	"errors"

	"tripmate/server/internal/docstore"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is the store's not-found error.
	ErrNotFound = docstore.ErrNotFound

	ErrVoteClosed       = errors.New("vote has expired")
	ErrUnknownOption    = errors.New("unknown vote option")
	ErrUnknownMenuItem  = errors.New("unknown menu item")
	ErrTooManyConflicts = errors.New("too many concurrent updates")
)

// ValidationError is a user input problem detected before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
