package photoproxy

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNoKeyFound          = errors.New("no photo key found in reference")
	ErrAuthNotConfigured   = errors.New("vendor credentials not configured")
	ErrNotFound            = errors.New("photo not found")
	ErrAuthExpired         = errors.New("vendor session expired")
	ErrRateLimited         = errors.New("vendor rate limit reached")
	ErrUpstreamUnavailable = errors.New("vendor unavailable")
)

// Error is returned by Service.Serve.
type Error struct {
	Kind error
	Key  string
	// RetryAfter is set for ErrRateLimited.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Key != "" {
		msg = fmt.Sprintf("%s: key %q", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retriable reports whether the same request may succeed later without
// operator action.
func (e *Error) Retriable() bool {
	return e.Kind == ErrRateLimited || e.Kind == ErrUpstreamUnavailable
}

// KindName is a short label for logs and metrics.
func KindName(kind error) string {
	switch kind {
	case ErrNoKeyFound:
		return "no_key_found"
	case ErrAuthNotConfigured:
		return "auth_not_configured"
	case ErrNotFound:
		return "not_found"
	case ErrAuthExpired:
		return "auth_expired"
	case ErrRateLimited:
		return "rate_limited"
	case ErrUpstreamUnavailable:
		return "upstream_unavailable"
	}
	return "unknown"
}
