package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/hirelink/hireauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot hireauth.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() hireauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := hireauth.MetricsSnapshot{
		Counters:      make(map[hireauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms:    make(map[hireauth.MetricID][]uint64, len(f.snapshot.Histograms)),
		Serialization: make(map[string]uint64, len(f.snapshot.Serialization)),
		Dropped:       make(map[string]uint64, len(f.snapshot.Dropped)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	for k, v := range f.snapshot.Serialization {
		out.Serialization[k] = v
	}
	for k, v := range f.snapshot.Dropped {
		out.Dropped[k] = v
	}
	return out
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumPoints(t *testing.T, rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	m, ok := findMetric(rm, name)
	if !ok {
		t.Fatalf("metric %s not collected", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s has data %T", name, m.Data)
	}
	return sum.DataPoints
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("hireauth-test")

	src := &fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters: map[hireauth.MetricID]uint64{
				hireauth.MetricLoginSuccess: 3,
			},
			Histograms: map[hireauth.MetricID][]uint64{
				hireauth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			Serialization: map[string]uint64{"unreadable": 2},
			Dropped:       map[string]uint64{hireauth.QueueSessionRefresh: 5},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	logins := sumPoints(t, rm, "hireauth_login_success_total")
	if len(logins) != 1 || logins[0].Value != 3 {
		t.Fatalf("unexpected login points: %+v", logins)
	}

	byCategory := map[string]int64{}
	for _, p := range sumPoints(t, rm, "hireauth_serialization_errors_total") {
		v, _ := p.Attributes.Value("category")
		byCategory[v.AsString()] = p.Value
	}
	if byCategory["unreadable"] != 2 || byCategory["format"] != 0 {
		t.Fatalf("unexpected serialization points: %v", byCategory)
	}
	if _, ok := byCategory["encode_failed"]; !ok {
		t.Fatalf("missing encode_failed category: %v", byCategory)
	}

	byQueue := map[string]int64{}
	for _, p := range sumPoints(t, rm, "hireauth_background_dropped_total") {
		v, _ := p.Attributes.Value("queue")
		byQueue[v.AsString()] = p.Value
	}
	if byQueue["session_refresh"] != 5 || byQueue["access_log"] != 0 {
		t.Fatalf("unexpected dropped points: %v", byQueue)
	}

	if _, ok := findMetric(rm, "hireauth_validate_latency_seconds_count"); !ok {
		t.Fatal("latency count gauge not collected")
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()
	meter := provider.Meter("hireauth-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestCloseStopsCollection(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("hireauth-test")

	src := &fakeSource{snapshot: hireauth.MetricsSnapshot{
		Counters: map[hireauth.MetricID]uint64{hireauth.MetricLogout: 1},
	}}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if m, ok := findMetric(rm, "hireauth_logout_total"); ok {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
			t.Fatalf("metric still observed after Close: %+v", sum.DataPoints)
		}
	}

	var nilExp *OTelExporter
	if err := nilExp.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("hireauth-test")

	src := &fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters: map[hireauth.MetricID]uint64{
				hireauth.MetricLoginSuccess: 1,
			},
			Histograms: map[hireauth.MetricID][]uint64{
				hireauth.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[hireauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
