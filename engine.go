package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/password"
)

// Engine coordinates registration and authentication: the rate-limit gate,
// credential verification, MFA, token issuance, and the surrounding audit,
// metric, and notification plumbing. Build one through [Builder.Build] and
// share it across goroutines.
type Engine struct {
	config    Config
	cache     Cache
	users     UserStore
	limiter   *rate.Limiter
	mfaTokens *stores.MFATokenStore
	totp      *totpManager
	hasher    *password.Argon2
	issuer    TokenIssuer
	notifier  Notifier
	monitor   Monitor
	audit     *auditDispatcher
	metrics   *Metrics

	// decoyHash equalizes password verification work between unknown-email
	// and wrong-password failures.
	decoyHash string
}

// Close flushes the audit dispatcher. The injected cache, store, and
// notifier stay open; they belong to the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, action string, cause error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Action:    action,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// enforceRateLimit gates one attempt and maps the limiter's structured
// rejection into the public error model.
func (e *Engine) enforceRateLimit(ctx context.Context, action string) error {
	ip := clientIPFromContext(ctx)
	err := e.limiter.Enforce(ctx, ip, action)
	if err == nil {
		return nil
	}

	if limited, ok := err.(*rate.Error); ok {
		return &RateLimitError{
			RetryAfter: limited.RetryAfter,
			IP:         limited.IP,
			Action:     limited.Action,
		}
	}
	return err
}
