package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"record not found", ErrRecordNotFound, true},
		{"no CNAME match", ErrNoCNAMEMatch, true},
		{"wrapped invalid host", fmt.Errorf("%w: empty host", ErrInvalidHost), true},
		{"store unavailable", ErrStoreUnavailable, false},
		{"resolve failed", &ErrResolveFailed{Domain: "go.customer.com", Reason: "timeout"}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrHitIncrementFailedUnwraps(t *testing.T) {
	err := error(&ErrHitIncrementFailed{Subdomain: "blog", Err: ErrStoreUnavailable})

	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("expected ErrHitIncrementFailed to unwrap to its cause")
	}
	var hitErr *ErrHitIncrementFailed
	if !errors.As(err, &hitErr) || hitErr.Subdomain != "blog" {
		t.Errorf("errors.As() = %+v", hitErr)
	}
}

func TestErrConfigLoadMessage(t *testing.T) {
	if got := (&ErrConfigLoad{Reason: "bad"}).Error(); got != "invalid configuration: bad" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ErrConfigLoad{Path: "c.yaml", Reason: "missing"}).Error(); got != "failed to load config from c.yaml: missing" {
		t.Errorf("Error() = %q", got)
	}
}
