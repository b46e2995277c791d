package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/autocode-ai/autocode/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist. It
// propagates unchanged to the caller.
var ErrNotFound = errors.New("not found")

// RateLimitedError signals the backend rejected a call for quota reasons.
// RetryAfter, when positive, is the server-suggested wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// TransientError wraps a recoverable network-level failure worth retrying
// with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermissionError signals the backend denied the operation. Create-style
// operations degrade to a lookup of an existing resource with the same
// identity.
type PermissionError struct {
	Op  string
	Err error
}

func (e *PermissionError) Error() string { return "permission denied: " + e.Op + ": " + e.Err.Error() }
func (e *PermissionError) Unwrap() error { return e.Err }

// MalformedResponseError signals the backend returned something that could
// not be decoded. The cache is never populated from such a response.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string { return "malformed response: " + e.Err.Error() }
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsTransient reports whether err is a recoverable network failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermission reports whether err is a permission denial.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsMalformed reports whether err is a malformed-response failure.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// outcomeFor classifies an error for call-log accounting.
func outcomeFor(err error) models.Outcome {
	switch {
	case err == nil:
		return models.OutcomeSuccess
	case IsRateLimited(err):
		return models.OutcomeRateLimited
	default:
		return models.OutcomeError
	}
}
