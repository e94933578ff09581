package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/internal"
)

const (
	actionRegister = "register"
	actionLogin    = "login"
)

func userCacheKey(userID string) string {
	return "user:auth:" + userID
}

func userEmailCacheKey(email string) string {
	return "user:auth:email:" + email
}

// Register creates a user account behind the adaptive rate-limit gate.
//
// The store owns email uniqueness: a violation surfaces as
// [ErrDuplicateEmail], never as a generic failure. A cache write failure
// after creation is reported to the monitor and does not fail the
// registration. Any other internal fault is reported and replaced with
// [ErrRegistrationFailed].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if e == nil || e.users == nil || e.hasher == nil || e.limiter == nil {
		return nil, ErrEngineNotReady
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", actionRegister, ErrRegistrationInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_email",
			}
		})
		return nil, ErrRegistrationInvalid
	}
	if req.Password == "" {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", actionRegister, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "empty_password",
			}
		})
		return nil, ErrPasswordPolicy
	}

	if err := e.enforceRateLimit(ctx, actionRegister); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricRegisterRateLimited)
			e.emitAudit(ctx, auditEventRegisterRateLimited, false, "", actionRegister, err, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return nil, err
	}

	passwordHash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", actionRegister, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "hash_policy",
			}
		})
		return nil, ErrPasswordPolicy
	}

	verificationToken, err := internal.NewVerificationToken()
	if err != nil {
		return nil, e.failRegistration(ctx, email, "token_generation", err)
	}

	user, err := e.users.Create(ctx, CreateUserInput{
		Name:              req.Name,
		Email:             email,
		PasswordHash:      passwordHash,
		VerificationToken: verificationToken,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", actionRegister, ErrDuplicateEmail, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrDuplicateEmail
		}
		return nil, e.failRegistration(ctx, email, "store_create_failed", err)
	}

	e.cachePublicUser(ctx, user)
	e.enqueueRegistrationJobs(user)

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, actionRegister, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return &user, nil
}

// cachePublicUser is best-effort: registration already committed, so a
// cache failure is telemetry, not an error.
func (e *Engine) cachePublicUser(ctx context.Context, user User) {
	data, err := json.Marshal(user.Public())
	if err == nil {
		err = e.cache.Put(ctx, userCacheKey(user.ID), data, e.config.Cache.UserTTL)
	}
	if err != nil {
		e.reportException(ctx, fmt.Errorf("cache user %s after registration: %w", user.ID, err))
		e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, actionRegister, nil, func() map[string]string {
			return map[string]string{
				"warning": "user_cache_write_failed",
			}
		})
	}
}

func (e *Engine) enqueueRegistrationJobs(user User) {
	if e.notifier == nil {
		return
	}

	e.notifier.Enqueue(NotifyUserRegistered, map[string]string{
		"user_id": user.ID,
		"email":   user.Email,
	}, 0)
	e.metricInc(MetricNotificationEnqueued)

	e.notifier.Enqueue(NotifyVerificationEmail, map[string]string{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   user.VerificationToken,
	}, 1)
	e.metricInc(MetricNotificationEnqueued)
}

// failRegistration reports the cause to the monitor and returns the
// generic envelope so internals never leak to the caller.
func (e *Engine) failRegistration(ctx context.Context, email, reason string, cause error) error {
	e.reportException(ctx, fmt.Errorf("registration %s: %w", reason, cause))
	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", actionRegister, cause, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
	return ErrRegistrationFailed
}

func (e *Engine) reportException(ctx context.Context, err error) {
	if e == nil || e.monitor == nil || err == nil {
		return
	}
	e.monitor.ReportException(ctx, err)
}

func (e *Engine) reportEvent(ctx context.Context, name string, details map[string]string) {
	if e == nil || e.monitor == nil {
		return
	}
	e.monitor.ReportEvent(ctx, name, details)
}
