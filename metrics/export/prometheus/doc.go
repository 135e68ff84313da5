// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// The exporter keeps no state of its own: every scrape reads one
// MetricsSnapshot from the source. Counters are named gosession_*_total and
// the validate latency histogram is gosession_validate_latency_seconds.
// Nothing is registered globally; mount [Exporter.Handler] where you want it.
package prometheus
