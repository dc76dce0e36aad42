package hireauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions issued and confirmed by read-back.
	MetricSessionCreated MetricID = iota
	// MetricSessionDisplaced counts sessions removed by a newer login of the
	// same account.
	MetricSessionDisplaced
	// MetricSessionValidated counts successful validations.
	MetricSessionValidated
	// MetricSessionNotFound counts lookups of unknown session ids.
	MetricSessionNotFound
	// MetricSessionExpired counts sessions removed on read after expiry.
	MetricSessionExpired
	// MetricSessionDisabled counts validations rejected by the disabled marker.
	MetricSessionDisabled
	// MetricSessionCorrupt counts unreadable payloads removed on read.
	MetricSessionCorrupt
	// MetricSessionDegraded counts sessions served from a coerced payload.
	MetricSessionDegraded
	// MetricSessionRefreshed counts TTL extensions.
	MetricSessionRefreshed
	// MetricSessionRefreshFailed counts TTL extensions that hit a store error.
	MetricSessionRefreshFailed
	// MetricSessionRefreshDropped counts background refreshes dropped under
	// backpressure.
	MetricSessionRefreshDropped
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricKickOut counts administrative session removals.
	MetricKickOut
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the throttle.
	MetricLoginRateLimited
	// MetricAccountLocked counts accounts disabled by the lockout policy.
	MetricAccountLocked
	// MetricAccountDisabled counts administrative disable operations.
	MetricAccountDisabled
	// MetricAccountEnabled counts administrative enable operations.
	MetricAccountEnabled
	// MetricPolicyReloadSuccess counts successful policy reloads.
	MetricPolicyReloadSuccess
	// MetricPolicyReloadFailure counts reloads that kept the previous policy.
	MetricPolicyReloadFailure
	// MetricPermissionDenied counts failed permission or role checks.
	MetricPermissionDenied
	// MetricValidateLatency is the validate latency histogram.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters and the validate latency
// histogram. A nil or disabled *Metrics ignores every write.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of the engine metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// Serialization holds the codec recovery counters keyed by category
	// name. It is filled by [Engine.MetricsSnapshot].
	Serialization map[string]uint64
	// Dropped holds background work discarded under backpressure, keyed by
	// queue name. It is filled by [Engine.MetricsSnapshot].
	Dropped map[string]uint64
}

// NewMetrics creates the metric registry for cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram id. Only MetricValidateLatency has
// a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
