// Package prometheus renders hireauth engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [hireauth.Engine] and exposes an
// [http.Handler]. Counters are named hireauth_*_total, the latency histogram
// is hireauth_validate_latency_seconds, and the serialization and backlog
// counters carry a category or queue label.
//
// Nothing is registered globally; callers mount the handler themselves.
package prometheus
