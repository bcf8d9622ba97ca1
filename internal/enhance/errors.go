package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// Failure classifies a service error so callers can apply differentiated
// retry policy.
type Failure int

const (
	// FailTransient: temporarily unavailable or retryable; caller may retry.
	FailTransient Failure = iota
	// FailRejected: input declined; retrying without changed input is useless.
	FailRejected
	// FailTimeout: no response within the wall-clock bound.
	FailTimeout
)

func (f Failure) String() string {
	switch f {
	case FailRejected:
		return "rejected"
	case FailTimeout:
		return "timeout"
	default:
		return "transient"
	}
}

// ErrNoImage means the service answered without producing an image part.
// Observed intermittently; treated as transient.
var ErrNoImage = errors.New("service returned no image")

// ServiceError marks an error produced by an enhancement service call, as
// opposed to local validation or IO. Callers use it to route failures onto
// the right surface.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return e.Err.Error() }
func (e *ServiceError) Unwrap() error { return e.Err }

// RejectedError marks an input the service declined.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("input rejected: %s", e.Reason)
}

// Classify maps a service error onto the failure taxonomy. Unknown errors
// default to transient: network-level failures surface as plain errors and
// retrying those is the useful behavior.
func Classify(err error) Failure {
	if isTimeout(err) {
		return FailTimeout
	}
	if isRejected(err) {
		return FailRejected
	}
	return FailTransient
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "deadline exceeded") || strings.Contains(s, "timeout")
}

func isRejected(err error) bool {
	if err == nil {
		return false
	}

	var rej *RejectedError
	if errors.As(err, &rej) {
		return true
	}

	// 4xx from the API are input errors, except 429 which is load shedding.
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return true
		}
		return false
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "invalid argument") ||
		strings.Contains(s, "blocked") ||
		strings.Contains(s, "safety") ||
		strings.Contains(s, "unsupported")
}
