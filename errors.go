package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited is returned when an (ip, action) pair exceeded its
	// adaptive attempt threshold. The concrete error is a [*RateLimitError];
	// match with errors.Is and unwrap with errors.As for retry context.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike; the two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by [UserStore] lookups for missing users.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail must be returned by [UserStore.Create] on a
	// uniqueness violation. It propagates distinctly from registration,
	// never folded into ErrRegistrationFailed.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrRegistrationFailed is the generic envelope over unexpected internal
	// faults during registration. The cause goes to the [Monitor] only.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrRegistrationInvalid is returned for empty or malformed registration
	// input before any collaborator is touched.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrPasswordPolicy is returned when the password fails the hasher's
	// minimum requirements.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrMFACodeRequired is returned when an MFA-enabled user authenticates
	// without a one-time code.
	ErrMFACodeRequired = errors.New("mfa code required")
	// ErrMFACodeInvalid is returned for rejected or replayed one-time codes.
	ErrMFACodeInvalid = errors.New("invalid mfa code")
	// ErrMFANotConfigured is returned when MFA verification or confirmation
	// runs against a user without a stored secret.
	ErrMFANotConfigured = errors.New("mfa not configured")
	// ErrMFAUnavailable wraps backend failures in the MFA challenge store.
	ErrMFAUnavailable = errors.New("mfa backend unavailable")
	// ErrCacheUnavailable wraps cache backend failures surfaced by the core.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrTokenIssuerUnavailable is returned when token issuance fails after
	// a successful credential and MFA check.
	ErrTokenIssuerUnavailable = errors.New("token issuer unavailable")
	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError carries the retry-after duration and the (ip, action)
// context of a rejected attempt. It satisfies errors.Is(err, ErrRateLimited).
type RateLimitError struct {
	RetryAfter time.Duration
	IP         string
	Action     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: action=%s ip=%s retry_after=%s", e.Action, e.IP, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
