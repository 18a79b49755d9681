// Package otel bridges tokenguard engine metrics to an OpenTelemetry
// [metric.Meter].
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and,
// per latency histogram, one Int64ObservableGauge per cumulative bucket plus
// a count gauge. A single callback reads one snapshot per collection. The
// caller owns the MeterProvider.
package otel
