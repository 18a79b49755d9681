// Package prometheus exposes tokenguard engine metrics through a
// client_golang [prometheus.Collector].
//
// Counters are named tokenguard_*_total; latency histograms are
// tokenguard_validate_latency_seconds and tokenguard_refresh_latency_seconds.
// Each scrape reads one [tokenguard.Engine.MetricsSnapshot]. Nothing is
// registered globally; callers register the collector or mount [Handler].
package prometheus
