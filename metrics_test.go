package authcore

import (
	"sync"
	"testing"
)

func TestMetricsIncAndGet(t *testing.T) {
	m := newMetrics()

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricMFAReplay)

	if got := m.Get(MetricLoginSuccess); got != 2 {
		t.Fatalf("MetricLoginSuccess = %d, want 2", got)
	}
	if got := m.Get(MetricMFAReplay); got != 1 {
		t.Fatalf("MetricMFAReplay = %d, want 1", got)
	}
	if got := m.Get(MetricLoginFailure); got != 0 {
		t.Fatalf("MetricLoginFailure = %d, want 0", got)
	}
}

func TestMetricsUnknownIDIgnored(t *testing.T) {
	m := newMetrics()
	m.Inc(metricCount)
	m.Inc(metricCount + 100)
	if got := m.Get(metricCount + 100); got != 0 {
		t.Fatalf("out-of-range Get = %d, want 0", got)
	}
}

func TestMetricsSnapshotCoversAllCounters(t *testing.T) {
	m := newMetrics()
	m.Inc(MetricRegisterSuccess)

	snap := m.Snapshot()
	if len(snap.Counters) != int(metricCount) {
		t.Fatalf("snapshot has %d counters, want %d", len(snap.Counters), metricCount)
	}
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("snapshot MetricRegisterSuccess = %d, want 1", snap.Counters[MetricRegisterSuccess])
	}

	// The snapshot is a copy: later increments do not leak in.
	m.Inc(MetricRegisterSuccess)
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatal("snapshot mutated by later increment")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := newMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricLoginSuccess); got != 16000 {
		t.Fatalf("MetricLoginSuccess = %d, want 16000", got)
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	if got := m.Get(MetricLoginSuccess); got != 0 {
		t.Fatalf("nil Get = %d", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("nil snapshot has %d counters", len(snap.Counters))
	}
}
