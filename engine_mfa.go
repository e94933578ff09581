package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/stores"
)

// verifyMFA validates a one-time code against the user's cached challenge.
//
// The challenge is cache-aside state keyed by user ID: created lazily from
// the stored secret on the first attempt, evicted on success, left to
// expire on failure. Since the seed is deterministic from the secret, the
// eviction alone cannot make a code single-use; the consumed-counter
// ledger rejects a second acceptance of the same time step.
func (e *Engine) verifyMFA(ctx context.Context, user User, code string) error {
	if code == "" {
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditEventMFARequired, false, user.ID, actionLogin, ErrMFACodeRequired, nil)
		return ErrMFACodeRequired
	}
	if len(user.MFASecret) == 0 {
		return ErrMFANotConfigured
	}

	challenge, err := e.mfaTokens.Load(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if challenge == nil {
		challenge = &stores.MFAToken{
			UserID:   user.ID,
			Secret:   user.MFASecret,
			IssuedAt: time.Now().Unix(),
		}
		if err := e.mfaTokens.Save(ctx, challenge, e.config.TOTP.TokenTTL); err != nil {
			return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
		}
	}

	ok, counter, verr := e.totp.VerifyCode(challenge.Secret, code, time.Now())
	if verr != nil {
		e.reportException(ctx, fmt.Errorf("mfa verification for user %s: %w", user.ID, verr))
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, verr)
	}
	if !ok {
		e.metricInc(MetricMFAFailure)
		e.reportEvent(ctx, "mfa.invalid_code", map[string]string{
			"user_id": user.ID,
		})
		e.emitAudit(ctx, auditEventMFAFailure, false, user.ID, actionLogin, ErrMFACodeInvalid, nil)
		return ErrMFACodeInvalid
	}

	fresh, err := e.mfaTokens.MarkCounterUsed(ctx, user.ID, counter, e.totp.acceptWindow())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if !fresh {
		e.metricInc(MetricMFAReplay)
		e.metricInc(MetricMFAFailure)
		e.reportEvent(ctx, "mfa.replay", map[string]string{
			"user_id": user.ID,
		})
		e.emitAudit(ctx, auditEventMFAFailure, false, user.ID, actionLogin, ErrMFACodeInvalid, func() map[string]string {
			return map[string]string{
				"reason": "code_replayed",
			}
		})
		return ErrMFACodeInvalid
	}

	// Eviction is best-effort: the ledger above already blocks replay.
	if _, err := e.mfaTokens.Consume(ctx, user.ID); err != nil {
		e.reportException(ctx, fmt.Errorf("mfa challenge eviction for user %s: %w", user.ID, err))
	}

	e.metricInc(MetricMFASuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, user.ID, actionLogin, nil, nil)
	return nil
}
