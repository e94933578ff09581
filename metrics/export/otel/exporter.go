package otel

import (
	"context"
	"errors"
	"fmt"

	authcore "github.com/MrEthical07/authcore"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type counterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var counterDefs = []counterDef{
	{authcore.MetricRegisterSuccess, "authcore_register_success_total", "Completed registrations."},
	{authcore.MetricRegisterFailure, "authcore_register_failure_total", "Registrations that failed on an internal fault."},
	{authcore.MetricRegisterDuplicate, "authcore_register_duplicate_total", "Registrations rejected for a duplicate email."},
	{authcore.MetricRegisterRateLimited, "authcore_register_rate_limited_total", "Register attempts rejected by the rate limiter."},
	{authcore.MetricLoginSuccess, "authcore_login_success_total", "Authentications that issued a token."},
	{authcore.MetricLoginFailure, "authcore_login_failure_total", "Credential rejections."},
	{authcore.MetricLoginRateLimited, "authcore_login_rate_limited_total", "Login attempts rejected by the rate limiter."},
	{authcore.MetricMFARequired, "authcore_mfa_required_total", "Logins halted for a missing one-time code."},
	{authcore.MetricMFASuccess, "authcore_mfa_success_total", "Verified one-time codes."},
	{authcore.MetricMFAFailure, "authcore_mfa_failure_total", "Rejected one-time codes."},
	{authcore.MetricMFAReplay, "authcore_mfa_replay_total", "One-time codes rejected as replays."},
	{authcore.MetricTokenIssued, "authcore_token_issued_total", "Bearer tokens minted."},
	{authcore.MetricUserCacheHit, "authcore_user_cache_hit_total", "Email lookups served from cache."},
	{authcore.MetricUserCacheMiss, "authcore_user_cache_miss_total", "Email lookups that fell through to the store."},
	{authcore.MetricNotificationEnqueued, "authcore_notification_enqueued_total", "Jobs handed to the notifier."},
}

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *authcore.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
