package metrics

import "time"

// SessionMetrics observes the guest session registry's attach lifecycle,
// idle eviction, and stat cache. Pass nil to disable metrics collection
// with zero overhead.
type SessionMetrics interface {
	// RecordAttach records one NBD attach attempt's outcome and duration.
	RecordAttach(success bool, duration time.Duration)

	// RecordEviction records a session closed and removed from the
	// registry, keyed by the reason ("idle_timeout", "drained", or
	// "shutdown").
	RecordEviction(reason string)

	// SetActiveSessions updates the current guest session count, across
	// all states.
	SetActiveSessions(count int)

	// RecordStatCacheResult records a stat-cache lookup outcome ("hit" or
	// "miss").
	RecordStatCacheResult(outcome string)
}
