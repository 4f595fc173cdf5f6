package records

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired is returned when a mutation is attempted
	// without a signed-in user.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrAuthorizationDenied is returned when a user tries to delete a record
	// they neither own nor administer.
	ErrAuthorizationDenied = errors.New("not allowed to delete this record")
	// ErrRecordNotFound is matched by gateway errors for missing records.
	ErrRecordNotFound = errors.New("record not found")
)

// ValidationError reports a draft rejected before any network call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %v", e.Err)
}

func (e *ValidationError) Unwrap() error   { return e.Err }
func (e *ValidationError) Permanent() bool { return true }

// TransientGatewayError is surfaced once the retry budget of a gateway call
// is exhausted. The session stays usable.
type TransientGatewayError struct {
	Op         string
	Collection string
	Err        error
}

func (e *TransientGatewayError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *TransientGatewayError) Unwrap() error { return e.Err }

// MediaUploadError aborts an Add before the record is created.
type MediaUploadError struct {
	Key string
	Err error
}

func (e *MediaUploadError) Error() string {
	return fmt.Sprintf("failed to upload media %s: %v", e.Key, e.Err)
}

func (e *MediaUploadError) Unwrap() error { return e.Err }

// MalformedRecordError describes a listed entry that failed shape checks.
// It is logged and the entry skipped.
type MalformedRecordError struct {
	Raw json.RawMessage
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %v", e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
