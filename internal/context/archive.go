package ctxengine

import "time"

// Clearing reasons recorded in archive records.
const (
	ReasonToolCallExpired = "tool_call_expired"
	ReasonMessageAge      = "message_age"
	ReasonFallback        = "fallback_summary"
)

// ArchiveRecord describes one piece of evicted content with provenance.
// The engine only ever writes these; reading them back belongs to the
// long-term memory subsystem.
type ArchiveRecord struct {
	Index       int
	Reason      string
	ClearedAt   time.Time
	Placeholder string
}

// ArchiveSink receives archive records for every hard-clear or fallback
// event. Delivery is fire-and-forget: the engine neither retries nor waits
// for acknowledgement, and a sink must not block.
type ArchiveSink interface {
	Archive(rec ArchiveRecord)
}

// discardSink is the sink used when none is configured.
type discardSink struct{}

func (discardSink) Archive(ArchiveRecord) {}
