// Package etps produces and delivers structured telemetry events for every
// compatibility and hot-swap decision.
//
// Decision logic only constructs event values; delivery happens on a
// separate bounded queue so a slow sink never back-pressures a decision.
package etps

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates what a telemetry event records.
type EventKind string

const (
	KindComponentRegistered EventKind = "component_registered"
	KindEdgeValidated       EventKind = "edge_validated"
	KindGraphValidated      EventKind = "graph_validated"
	KindSwapTransition      EventKind = "swap_transition"
	KindSwapResult          EventKind = "swap_result"
)

// Severity levels carried on events. Allowed interactions report
// SeverityInfo, audit-flagged ones SeverityWarning, denied ones
// SeverityCritical.
const (
	SeverityInfo     = 1
	SeverityWarning  = 3
	SeverityCritical = 5
)

// Event is one append-only telemetry record. Events sharing a TraceID belong
// to the same validation call or swap attempt; their order within the trace
// reflects causal decision order.
type Event struct {
	TraceID      string    `json:"trace_id"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         EventKind `json:"event_kind"`
	ComponentIDs []string  `json:"component_ids,omitempty"`

	// Outcome is the decision the event records: an edge or graph verdict
	// severity, or a swap state transition such as "draining->swapping".
	Outcome  string `json:"outcome,omitempty"`
	Severity int    `json:"severity"`
	Detail   string `json:"detail,omitempty"`

	// Recommendation is operator-facing migration guidance, populated for
	// flagged and denied interactions.
	Recommendation string `json:"recommendation,omitempty"`
}

// NewTraceID mints the identifier threading all events of one validation
// call or one swap attempt.
func NewTraceID() string {
	return uuid.NewString()
}

// New constructs an event stamped with the current time.
func New(traceID string, kind EventKind, severity int) Event {
	return Event{
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Severity:  severity,
	}
}
