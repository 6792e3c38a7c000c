// Package validate evaluates a declared component set and its dependency
// edges against the compatibility matrix, producing a graph verdict.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/linkgate-platform/linkgate/internal/compat"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/metrics"
	"github.com/linkgate-platform/linkgate/internal/semver"
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

// Validator walks dependency edges and scores each against version
// constraints and the range-state matrix.
//
// It is read-only after construction and safe for concurrent use; the only
// side effect of Validate is telemetry emission.
type Validator struct {
	matrix  *compat.Matrix
	emitter *etps.Emitter
	log     logr.Logger
}

func New(matrix *compat.Matrix, emitter *etps.Emitter, log logr.Logger) *Validator {
	return &Validator{
		matrix:  matrix,
		emitter: emitter,
		log:     log.WithName("validate"),
	}
}

// Validate evaluates every edge against components and aggregates the
// outcomes into a GraphVerdict.
//
// Edges are processed in caller order; that order fixes telemetry sequencing
// only, each edge outcome is independent of the others. Cycles in the
// dependency graph are legal: edges are judged individually, so a cycle with
// compatible edges yields a Compatible verdict.
func (v *Validator) Validate(ctx context.Context, components []semverx.Component, edges []semverx.DependencyEdge) GraphVerdict {
	_ = ctx

	start := time.Now()
	metrics.ValidationTotal.Inc()

	traceID := etps.NewTraceID()
	verdict := GraphVerdict{
		Severity: Compatible,
		Outcomes: make([]EdgeOutcome, 0, len(edges)),
		TraceID:  traceID,
	}

	byID := indexComponents(components)

	for _, edge := range edges {
		outcome := v.evaluateEdge(byID, edge)
		verdict.Outcomes = append(verdict.Outcomes, outcome)
		if outcome.Severity > verdict.Severity {
			verdict.Severity = outcome.Severity
		}
		if outcome.Severity > Compatible {
			verdict.Offending = append(verdict.Offending, outcome)
		}

		metrics.EdgeOutcomeTotal.WithLabelValues(outcome.Severity.String()).Inc()
		v.emitEdge(traceID, edge, outcome)
	}

	v.emitGraph(traceID, verdict)
	metrics.ValidationDuration.Observe(time.Since(start).Seconds())
	return verdict
}

// indexComponents groups declared components by ID, keeping declaration
// order within a group.
func indexComponents(components []semverx.Component) map[string][]semverx.Component {
	byID := make(map[string][]semverx.Component, len(components))
	for _, c := range components {
		byID[c.ID] = append(byID[c.ID], c)
	}
	return byID
}

func (v *Validator) evaluateEdge(byID map[string][]semverx.Component, edge semverx.DependencyEdge) EdgeOutcome {
	consumer, ok := resolveHighest(byID, edge.ConsumerID)
	if !ok {
		return EdgeOutcome{
			Edge:     edge,
			Severity: Incompatible,
			Reason:   fmt.Sprintf("unresolved dependency: consumer %q not declared", edge.ConsumerID),
		}
	}

	producers, ok := byID[edge.ProducerID]
	if !ok {
		return EdgeOutcome{
			Edge:     edge,
			Severity: Incompatible,
			Reason:   fmt.Sprintf("unresolved dependency: producer %q not declared", edge.ProducerID),
		}
	}

	producer, ok := resolveSatisfying(producers, edge.VersionConstraint)
	if !ok {
		return EdgeOutcome{
			Edge:     edge,
			Severity: Incompatible,
			Reason: fmt.Sprintf("version constraint unmet: no declared version of %q satisfies %s",
				edge.ProducerID, edge.VersionConstraint),
		}
	}

	switch decision := v.matrix.Lookup(consumer.RangeState, producer.RangeState); decision {
	case compat.Deny:
		// An explicit opt-in keeps a denied experimental producer on the
		// audit path instead of blocking the edge outright.
		if producer.RangeState == semverx.RangeExperimental && edge.Accepts(producer.RangeState) {
			return EdgeOutcome{
				Edge:     edge,
				Severity: RequiresOverride,
				Producer: producer,
				Reason: fmt.Sprintf("%s consumer opted in to experimental producer %s",
					consumer.RangeState, producer),
			}
		}
		return EdgeOutcome{
			Edge:     edge,
			Severity: Incompatible,
			Producer: producer,
			Reason: fmt.Sprintf("range states incompatible: %s consumer %s cannot use %s producer %s",
				consumer.RangeState, consumer.ID, producer.RangeState, producer.ID),
		}
	case compat.AllowWithOverride:
		if edge.Accepts(producer.RangeState) {
			return EdgeOutcome{
				Edge:     edge,
				Severity: Degraded,
				Producer: producer,
				Reason: fmt.Sprintf("%s producer %s accepted by explicit opt-in",
					producer.RangeState, producer.ID),
			}
		}
		return EdgeOutcome{
			Edge:     edge,
			Severity: RequiresOverride,
			Producer: producer,
			Reason: fmt.Sprintf("%s consumer %s using %s producer %s requires override",
				consumer.RangeState, consumer.ID, producer.RangeState, producer.ID),
		}
	default:
		return EdgeOutcome{
			Edge:     edge,
			Severity: Compatible,
			Producer: producer,
		}
	}
}

// resolveHighest picks the highest declared version of id.
func resolveHighest(byID map[string][]semverx.Component, id string) (semverx.Component, bool) {
	group, ok := byID[id]
	if !ok || len(group) == 0 {
		return semverx.Component{}, false
	}
	best := group[0]
	for _, c := range group[1:] {
		if semver.Compare(c.Version, best.Version) > 0 {
			best = c
		}
	}
	return best, true
}

// resolveSatisfying picks the highest declared version of the producer that
// satisfies the edge constraint.
func resolveSatisfying(group []semverx.Component, c semver.Constraint) (semverx.Component, bool) {
	versions := make([]semver.Version, len(group))
	for i, comp := range group {
		versions[i] = comp.Version
	}
	best, ok := semver.MaxSatisfying(c, versions)
	if !ok {
		return semverx.Component{}, false
	}
	for _, comp := range group {
		if semver.Compare(comp.Version, best) == 0 {
			return comp, true
		}
	}
	return semverx.Component{}, false
}

func (v *Validator) emitEdge(traceID string, edge semverx.DependencyEdge, outcome EdgeOutcome) {
	ev := etps.New(traceID, etps.KindEdgeValidated, eventSeverity(outcome.Severity))
	ev.ComponentIDs = []string{edge.ConsumerID, edge.ProducerID}
	ev.Outcome = outcome.Severity.String()
	ev.Detail = outcome.Reason
	ev.Recommendation = recommendation(outcome)
	v.emitter.Emit(ev)
}

func (v *Validator) emitGraph(traceID string, verdict GraphVerdict) {
	ev := etps.New(traceID, etps.KindGraphValidated, eventSeverity(verdict.Severity))
	ev.Outcome = verdict.Severity.String()
	ev.Detail = fmt.Sprintf("%d edges evaluated, %d offending", len(verdict.Outcomes), len(verdict.Offending))
	v.emitter.Emit(ev)
}

func eventSeverity(s Severity) int {
	switch s {
	case Incompatible:
		return etps.SeverityCritical
	case RequiresOverride, Degraded:
		return etps.SeverityWarning
	default:
		return etps.SeverityInfo
	}
}

func recommendation(outcome EdgeOutcome) string {
	switch outcome.Severity {
	case Incompatible:
		return fmt.Sprintf("DENIED: %s", outcome.Reason)
	case RequiresOverride:
		return fmt.Sprintf("WARNING: %s; approve the override or migrate the producer", outcome.Reason)
	case Degraded:
		return fmt.Sprintf("flagged for audit: %s", outcome.Reason)
	}
	return ""
}
