// Package metrics provides lock-free counters and a latency histogram for
// authcore observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The session validation histogram
// uses 8 fixed buckets (≤5ms … +Inf). Both are allocation-free on the write
// path.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. The root package
// re-exports [ID] and [Snapshot] so callers can read Engine.MetricsSnapshot.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import authcore or any sibling package.
//   - Expose global metric registries.
package metrics
