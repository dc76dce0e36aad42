package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() hireauth.MetricsSnapshot
}

// PrometheusExporter renders engine metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *hireauth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter over any value that
// produces a [hireauth.MetricsSnapshot].
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics, or "" when metrics are disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(nonCumulative)
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	writeLabeledCounter(&b, internaldefs.SerializationErrorsName, internaldefs.SerializationErrorsHelp,
		internaldefs.SerializationLabel, internaldefs.SerializationCategories(), snapshot.Serialization)
	writeLabeledCounter(&b, internaldefs.DroppedName, internaldefs.DroppedHelp,
		internaldefs.DroppedLabel, internaldefs.DroppedQueues, snapshot.Dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

// writeLabeledCounter emits one sample per label value, in the order given,
// so output stays stable between scrapes.
func writeLabeledCounter(b *strings.Builder, name, help, label string, values []string, counts map[string]uint64) {
	writeHeader(b, name, help, "counter")
	for _, v := range values {
		b.WriteString(name)
		b.WriteByte('{')
		b.WriteString(label)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(v))
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(counts[v], 10))
		b.WriteByte('\n')
	}
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	count := cumulative[len(cumulative)-1]
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(count, 10))
	b.WriteByte('\n')

	// Snapshots carry bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(v string) string {
	v = escapeHelp(v)
	return strings.ReplaceAll(v, "\"", "\\\"")
}
