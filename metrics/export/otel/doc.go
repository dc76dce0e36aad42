// Package otel publishes hireauth engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter,
// one Int64ObservableGauge per latency bucket, and two attribute-labeled
// counters for serialization recoveries and dropped background work. A
// single callback reads [hireauth.Engine.MetricsSnapshot] per collection.
//
// The caller owns the MeterProvider.
package otel
