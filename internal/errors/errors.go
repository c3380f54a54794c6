package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the redirect resolution service.
// Every one of them ends a request on the NotFound path; none is a server error.

// ErrRecordNotFound is returned when no redirect record exists for a subdomain
var ErrRecordNotFound = errors.New("redirect record not found")

// ErrNoCNAMEMatch is returned when none of the CNAME answers points at the apex domain
var ErrNoCNAMEMatch = errors.New("no CNAME answer matches the apex domain")

// ErrStoreUnavailable is returned when the process has no store connection
var ErrStoreUnavailable = errors.New("redirect store unavailable")

// ErrInvalidHost is returned when the inbound Host header cannot be looked up in DNS
var ErrInvalidHost = errors.New("invalid host")

// ErrResolveFailed is returned when the DNS-over-HTTPS lookup fails
type ErrResolveFailed struct {
	Domain string
	Reason string
}

func (e *ErrResolveFailed) Error() string {
	return fmt.Sprintf("failed to resolve CNAME for %s: %s", e.Domain, e.Reason)
}

// ErrHitIncrementFailed is returned when the hit counter of a record could not be incremented
type ErrHitIncrementFailed struct {
	Subdomain string
	Err       error
}

func (e *ErrHitIncrementFailed) Error() string {
	return fmt.Sprintf("failed to increment hits for %s: %v", e.Subdomain, e.Err)
}

func (e *ErrHitIncrementFailed) Unwrap() error {
	return e.Err
}

// ErrConfigLoad is returned when configuration loading or validation fails
type ErrConfigLoad struct {
	Path   string
	Reason string
}

func (e *ErrConfigLoad) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Reason)
}

// IsNotFound reports whether err is one of the expected, non-exceptional outcomes
// (no CNAME match or no record) as opposed to a transient failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrNoCNAMEMatch) || errors.Is(err, ErrInvalidHost)
}
