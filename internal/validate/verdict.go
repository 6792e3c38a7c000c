package validate

import (
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

// Severity orders edge outcomes from harmless to blocking. Whole-graph
// severity is the maximum over all edges.
type Severity int

const (
	Compatible Severity = iota
	Degraded
	RequiresOverride
	Incompatible
)

func (s Severity) String() string {
	switch s {
	case Compatible:
		return "compatible"
	case Degraded:
		return "degraded"
	case RequiresOverride:
		return "requires_override"
	case Incompatible:
		return "incompatible"
	}
	return "unknown"
}

// EdgeOutcome is the decision for a single dependency edge. Outcomes are
// data, not errors: an unresolved producer or unmet constraint is reported
// here, never raised.
type EdgeOutcome struct {
	Edge     semverx.DependencyEdge
	Severity Severity
	Reason   string

	// Producer is the resolved producer component, zero when unresolved.
	Producer semverx.Component
}

// GraphVerdict aggregates all edge outcomes of one validation call.
type GraphVerdict struct {
	Severity Severity
	Outcomes []EdgeOutcome

	// Offending lists the outcomes that are worse than Compatible, in
	// evaluation order.
	Offending []EdgeOutcome

	// TraceID threads the telemetry events of this validation call.
	TraceID string
}

// Blocking reports whether the verdict forbids linking as-is.
func (v GraphVerdict) Blocking() bool {
	return v.Severity == Incompatible
}
