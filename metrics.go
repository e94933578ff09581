package authcore

import "sync/atomic"

// MetricID indexes a single engine counter.
type MetricID uint16

const (
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterFailure counts registrations replaced by ErrRegistrationFailed.
	MetricRegisterFailure
	// MetricRegisterDuplicate counts uniqueness violations from the user store.
	MetricRegisterDuplicate
	// MetricRegisterRateLimited counts register attempts rejected by the limiter.
	MetricRegisterRateLimited
	// MetricLoginSuccess counts authentications that issued a token.
	MetricLoginSuccess
	// MetricLoginFailure counts credential rejections.
	MetricLoginFailure
	// MetricLoginRateLimited counts login attempts rejected by the limiter.
	MetricLoginRateLimited
	// MetricMFARequired counts logins halted for a missing one-time code.
	MetricMFARequired
	// MetricMFASuccess counts verified one-time codes.
	MetricMFASuccess
	// MetricMFAFailure counts rejected one-time codes.
	MetricMFAFailure
	// MetricMFAReplay counts one-time codes rejected by the consumed-code ledger.
	MetricMFAReplay
	// MetricTokenIssued counts bearer tokens minted by the issuer.
	MetricTokenIssued
	// MetricUserCacheHit counts email lookups served from cache.
	MetricUserCacheHit
	// MetricUserCacheMiss counts email lookups that fell through to the store.
	MetricUserCacheMiss
	// MetricNotificationEnqueued counts jobs handed to the notifier.
	MetricNotificationEnqueued

	metricCount
)

// Metrics is a fixed set of atomic counters. All methods are safe for
// concurrent use and never allocate on the increment path.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter. Unknown IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter into a fresh map.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricCount),
	}
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}
