package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hirelink/hireauth"
)

type fakeSource struct {
	snapshot hireauth.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() hireauth.MetricsSnapshot { return f.snapshot }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters:   map[hireauth.MetricID]uint64{},
			Histograms: map[hireauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersHistogramAndLabels(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters: map[hireauth.MetricID]uint64{
				hireauth.MetricLoginSuccess:     7,
				hireauth.MetricSessionDisplaced: 2,
			},
			Histograms: map[hireauth.MetricID][]uint64{
				hireauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			Serialization: map[string]uint64{"unreadable": 4, "unknown_type": 1},
			Dropped:       map[string]uint64{hireauth.QueueAccessLog: 3},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"hireauth_login_success_total 7",
		"hireauth_session_displaced_total 2",
		"hireauth_logout_total 0",
		`hireauth_validate_latency_seconds_bucket{le="0.005"} 1`,
		`hireauth_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"hireauth_validate_latency_seconds_count 36",
		`hireauth_serialization_errors_total{category="unreadable"} 4`,
		`hireauth_serialization_errors_total{category="unknown_type"} 1`,
		`hireauth_serialization_errors_total{category="format"} 0`,
		`hireauth_background_dropped_total{queue="access_log"} 3`,
		`hireauth_background_dropped_total{queue="session_refresh"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.HasPrefix(line, "# ") && !strings.HasPrefix(line, "hireauth_") {
			t.Fatalf("metric line without namespace: %q", line)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters:      map[hireauth.MetricID]uint64{hireauth.MetricLoginFailure: 1},
			Serialization: map[string]uint64{"format": 2, "encode": 1},
		},
	})

	first := exp.Render()
	for i := 0; i < 10; i++ {
		if got := exp.Render(); got != first {
			t.Fatalf("render %d differs:\n%s\n---\n%s", i, got, first)
		}
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exp *PrometheusExporter
	if got := exp.Render(); got != "" {
		t.Fatalf("nil exporter rendered %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters:   map[hireauth.MetricID]uint64{hireauth.MetricLoginSuccess: 1},
			Histograms: map[hireauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hireauth_login_success_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: hireauth.MetricsSnapshot{
			Counters: map[hireauth.MetricID]uint64{
				hireauth.MetricLoginSuccess:     1000,
				hireauth.MetricLoginFailure:     40,
				hireauth.MetricSessionRefreshed: 800,
				hireauth.MetricSessionCreated:   800,
				hireauth.MetricLogout:           20,
			},
			Histograms: map[hireauth.MetricID][]uint64{
				hireauth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
			Serialization: map[string]uint64{"unknown_field": 3},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
