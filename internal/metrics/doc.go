// Package metrics provides lock-free counters and a validate-latency
// histogram for the session engine.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The histogram uses 8 fixed buckets (<=5ms ... +Inf). Both are
// allocation-free on the write path.
//
// Export (Prometheus text, OpenTelemetry) lives in metrics/export and reads
// [Snapshot] values.
package metrics
