package memorial

import "errors"

// Error codes carried in the "code" field of error responses.
const (
	CodeUserNotConfirmed = "UserNotConfirmed"
	CodeCodeMismatch     = "CodeMismatch"
)

var (
	// ErrUserNotConfirmed is returned by sign-in while the account still
	// awaits its confirmation code. It is recoverable by confirming.
	ErrUserNotConfirmed = errors.New("user is not confirmed")
	ErrCodeMismatch     = errors.New("confirmation code mismatch")
)
