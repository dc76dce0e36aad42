package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() hireauth.MetricsSnapshot
}

type observedCounter struct {
	id         hireauth.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      hireauth.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// labeledCounter is one instrument reported once per label value.
type labeledCounter struct {
	instrument metric.Int64ObservableCounter
	label      string
	values     []string
	pick       func(hireauth.MetricsSnapshot) map[string]uint64
}

func (c labeledCounter) observe(observer metric.Observer, snapshot hireauth.MetricsSnapshot) {
	counts := c.pick(snapshot)
	for _, v := range c.values {
		observer.ObserveInt64(c.instrument, int64(counts[v]), metric.WithAttributes(attribute.String(c.label, v)))
	}
}

// OTelExporter publishes engine metrics as observable instruments on a
// caller-supplied meter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	labeled      []labeledCounter
}

func NewOTelExporter(meter metric.Meter, engine *hireauth.Engine) (*OTelExporter, error) {
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
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+2)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i := 0; i < len(internaldefs.HistogramBoundSuffix); i++ {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	labeled := []struct {
		name, help, label string
		values            []string
		pick              func(hireauth.MetricsSnapshot) map[string]uint64
	}{
		{
			name: internaldefs.SerializationErrorsName, help: internaldefs.SerializationErrorsHelp,
			label: internaldefs.SerializationLabel, values: internaldefs.SerializationCategories(),
			pick: func(s hireauth.MetricsSnapshot) map[string]uint64 { return s.Serialization },
		},
		{
			name: internaldefs.DroppedName, help: internaldefs.DroppedHelp,
			label: internaldefs.DroppedLabel, values: internaldefs.DroppedQueues,
			pick: func(s hireauth.MetricsSnapshot) map[string]uint64 { return s.Dropped },
		},
	}
	for _, l := range labeled {
		ins, err := meter.Int64ObservableCounter(l.name, metric.WithDescription(l.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", l.name, err)
		}
		exporter.labeled = append(exporter.labeled, labeledCounter{
			instrument: ins,
			label:      l.label,
			values:     l.values,
			pick:       l.pick,
		})
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		for _, h := range exporter.histograms {
			nonCumulative := internaldefs.NormalizeBuckets(snapshot.Histograms[h.id])
			cumulative := internaldefs.CumulativeBuckets(nonCumulative)
			for i := 0; i < len(cumulative); i++ {
				observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
			}
			observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		}
		for _, l := range exporter.labeled {
			l.observe(observer, snapshot)
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
