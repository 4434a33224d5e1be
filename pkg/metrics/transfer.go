package metrics

import "time"

// TransferMetrics observes the per-RRQ transfer engine. Pass nil to disable
// metrics collection with zero overhead.
type TransferMetrics interface {
	// RecordTransferStart increments the in-flight transfer gauge.
	RecordTransferStart()

	// RecordTransferEnd records a completed transfer: its outcome
	// ("ok", "timeout", "client_error", "io_error", "cancelled"), total bytes sent,
	// blocks sent, and wall-clock duration. Also decrements the in-flight
	// gauge incremented by RecordTransferStart.
	RecordTransferEnd(outcome string, bytes int64, blocks int, duration time.Duration)

	// RecordRetransmit records one DATA or OACK retransmission.
	RecordRetransmit(packetType string)

	// RecordOptionNegotiated records a client option the server accepted
	// (blksize, timeout, tsize) and the value it was clamped to.
	RecordOptionNegotiated(option string, value int)
}
