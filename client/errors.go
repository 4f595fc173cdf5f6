package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/records"
)

// StatusError is a non-2xx response from the record store.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Code       string
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	e := &StatusError{Method: method, Path: path, StatusCode: status}

	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Error
		e.Code = payload.Code
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Permanent reports whether retrying the same request is pointless.
func (e *StatusError) Permanent() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case records.ErrRecordNotFound:
		return e.StatusCode == http.StatusNotFound
	case records.ErrAuthenticationRequired:
		return e.StatusCode == http.StatusUnauthorized
	case records.ErrAuthorizationDenied:
		return e.StatusCode == http.StatusForbidden
	case memorial.ErrUserNotConfirmed:
		return e.Code == memorial.CodeUserNotConfirmed
	case memorial.ErrCodeMismatch:
		return e.Code == memorial.CodeCodeMismatch
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
