package domain

import (
	"errors"
	"fmt"

	"github.com/totegamma/memorial"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Reason
}

func (e ForbiddenError) Is(target error) bool {
	_, ok := target.(ForbiddenError)
	return ok
}

var ErrForbidden = ForbiddenError{}

type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

func (e UnauthorizedError) Is(target error) bool {
	_, ok := target.(UnauthorizedError)
	return ok
}

var ErrUnauthorized = UnauthorizedError{}

// ConflictError reports a resource that already exists.
type ConflictError struct {
	Resource string
}

func (e ConflictError) Error() string {
	if e.Resource == "" {
		return "conflict"
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// ValidationError reports malformed input.
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e ValidationError) Unwrap() error { return e.Err }

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	return ok
}

var ErrValidation = ValidationError{Err: errors.New("invalid input")}

var (
	ErrUserNotConfirmed = memorial.ErrUserNotConfirmed
	ErrCodeMismatch     = memorial.ErrCodeMismatch
)
