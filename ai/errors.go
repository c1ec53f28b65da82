package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks a remote call rejected for quota reasons. It is
	// matched through RemoteError with errors.Is.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnsupported is returned by providers lacking an operation.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrEmptyResponse is returned when the model answered with nothing usable.
	ErrEmptyResponse = errors.New("empty response")
)

// RemoteError wraps any failure of a remote AI call.
type RemoteError struct {
	Op          string
	Err         error
	RateLimited bool
}

func (e *RemoteError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("ai %s: rate limited: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimited) match rate limited remote errors.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

// IsRateLimited reports whether err is a rate limited remote failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ParseError reports a model answer that lacks the expected structure.
type ParseError struct {
	What string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %v", e.What, e.Err)
	}
	return fmt.Sprintf("malformed %s response", e.What)
}

func (e *ParseError) Unwrap() error { return e.Err }
