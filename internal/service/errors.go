package service

import (
	"errors"
	"fmt"

	"github.com/templui/vaultgate/internal/policy"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrResourceExpired    = errors.New("project has expired")
	ErrAccountLocked      = errors.New("account is locked")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
)

// QuotaExceededError carries the numbers the caller needs to free space.
type QuotaExceededError struct {
	Requested int64
	Remaining int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %d bytes requested, %d remaining", e.Requested, e.Remaining)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// AccessDeniedError keeps the policy reason for logs. It must not be shown
// to the caller.
type AccessDeniedError struct {
	Reason policy.Reason
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + e.Reason.String()
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
