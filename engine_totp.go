package authcore

import (
	"context"
	"fmt"
	"time"
)

// ProvisionMFA generates a fresh TOTP secret for the user and stores it in
// a pending state. Login does not require a code until [Engine.ConfirmMFA]
// proves the authenticator was enrolled; calling ProvisionMFA again before
// confirmation rotates the pending secret.
func (e *Engine) ProvisionMFA(ctx context.Context, userID string) (*MFAProvision, error) {
	if e == nil || e.users == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		e.reportException(ctx, fmt.Errorf("generate mfa secret for user %s: %w", userID, err))
		return nil, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}

	user.MFASecret = raw
	user.MFAEnabled = false
	if _, err := e.users.Update(ctx, user); err != nil {
		e.reportException(ctx, fmt.Errorf("store mfa secret for user %s: %w", userID, err))
		return nil, fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}

	// A stale cached record would carry the old secret into login.
	e.invalidateUserCache(ctx, user)

	e.emitAudit(ctx, auditEventMFAProvisioned, true, user.ID, "mfa", nil, nil)
	return &MFAProvision{
		SecretBase32: encoded,
		URI:          e.totp.ProvisionURI(encoded, user.Email),
	}, nil
}

// ConfirmMFA proves enrollment with one valid code and flips the account to
// MFA-required. The confirming code is recorded in the consumed ledger so
// it cannot also pass the next login.
func (e *Engine) ConfirmMFA(ctx context.Context, userID, code string) error {
	if e == nil || e.users == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if len(user.MFASecret) == 0 {
		return ErrMFANotConfigured
	}
	if code == "" {
		return ErrMFACodeRequired
	}

	ok, counter, verr := e.totp.VerifyCode(user.MFASecret, code, time.Now())
	if verr != nil {
		e.reportException(ctx, fmt.Errorf("mfa confirmation for user %s: %w", userID, verr))
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, verr)
	}
	if !ok {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.ID, "mfa", ErrMFACodeInvalid, nil)
		return ErrMFACodeInvalid
	}

	fresh, err := e.mfaTokens.MarkCounterUsed(ctx, userID, counter, e.totp.acceptWindow())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if !fresh {
		e.metricInc(MetricMFAReplay)
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.ID, "mfa", ErrMFACodeInvalid, nil)
		return ErrMFACodeInvalid
	}

	user.MFAEnabled = true
	if _, err := e.users.Update(ctx, user); err != nil {
		e.reportException(ctx, fmt.Errorf("enable mfa for user %s: %w", userID, err))
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}

	e.invalidateUserCache(ctx, user)

	e.emitAudit(ctx, auditEventMFAConfirmed, true, user.ID, "mfa", nil, nil)
	return nil
}

// invalidateUserCache drops the cached lookup entries after a user mutation.
// Best-effort: a failed eviction self-heals when the TTL lapses.
func (e *Engine) invalidateUserCache(ctx context.Context, user User) {
	if e.cache == nil {
		return
	}
	if _, err := e.cache.Forget(ctx, userEmailCacheKey(user.Email)); err != nil {
		e.reportException(ctx, fmt.Errorf("evict cached user %s: %w", user.ID, err))
		return
	}
	if _, err := e.cache.Forget(ctx, userCacheKey(user.ID)); err != nil {
		e.reportException(ctx, fmt.Errorf("evict cached user %s: %w", user.ID, err))
	}
}
