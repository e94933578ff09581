package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Authenticate verifies credentials for email and, when the account has MFA
// enabled, the supplied one-time code, then issues a bearer token.
//
// Unknown emails and wrong passwords both yield [ErrInvalidCredentials]
// with no distinguishing signal; a decoy hash keeps the verification cost
// comparable. MFA failures propagate verbatim ([ErrMFACodeRequired],
// [ErrMFACodeInvalid]). The state machine is strictly ordered: rate gate,
// user resolution, credential check, MFA, token issuance — any failure is
// terminal and no partial token is issued.
func (e *Engine) Authenticate(ctx context.Context, email, passwd, mfaCode string) (*Token, error) {
	if e == nil || e.users == nil || e.hasher == nil || e.limiter == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)

	if err := e.enforceRateLimit(ctx, actionLogin); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", actionLogin, err, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return nil, err
	}

	user, found, err := e.resolveUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		// Equalize work with the wrong-password path before rejecting.
		_, _ = e.hasher.Verify(passwd, e.decoyHash)
		return nil, e.failLogin(ctx, "", email, "user_not_found")
	}

	ok, verr := e.hasher.Verify(passwd, user.PasswordHash)
	if verr != nil || !ok {
		return nil, e.failLogin(ctx, user.ID, email, "password_mismatch")
	}

	if user.MFAEnabled {
		if err := e.verifyMFA(ctx, user, mfaCode); err != nil {
			return nil, err
		}
	}

	token, err := e.issuer.Issue(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, actionLogin, err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "token_issuance",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrTokenIssuerUnavailable, err)
	}

	e.metricInc(MetricTokenIssued)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, actionLogin, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return token, nil
}

// resolveUser is the cache-aside lookup: the email-keyed cache entry first,
// the user store on miss. The store fetch is idempotent and side-effect
// free, so racing misses at most duplicate the read.
func (e *Engine) resolveUser(ctx context.Context, email string) (User, bool, error) {
	computed := false
	data, err := e.cache.Remember(ctx, userEmailCacheKey(email), e.config.Cache.UserTTL, func(ctx context.Context) ([]byte, error) {
		computed = true
		stored, err := e.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stored)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if computed {
		e.metricInc(MetricUserCacheMiss)
	} else {
		e.metricInc(MetricUserCacheHit)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, false, fmt.Errorf("%w: corrupt cached user", ErrCacheUnavailable)
	}
	return user, true, nil
}

func (e *Engine) failLogin(ctx context.Context, userID, email, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, actionLogin, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
	return ErrInvalidCredentials
}
