package validate

import (
	"context"
	"reflect"
	"testing"

	"github.com/go-logr/logr"

	"github.com/linkgate-platform/linkgate/internal/compat"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/semver"
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

func comp(id, version string, state semverx.RangeState) semverx.Component {
	return semverx.Component{
		ID:         id,
		Version:    semver.MustParseVersion(version),
		RangeState: state,
	}
}

func dep(consumer, producer, constraint string, accepts ...semverx.RangeState) semverx.DependencyEdge {
	return semverx.DependencyEdge{
		ConsumerID:          consumer,
		ProducerID:          producer,
		VersionConstraint:   semver.MustParseConstraint(constraint),
		AcceptedRangeStates: accepts,
	}
}

func newValidator(t *testing.T) (*Validator, *etps.MemorySink, func()) {
	t.Helper()
	sink := etps.NewMemorySink()
	emitter := etps.NewEmitter(sink, 64, logr.Discard())
	v := New(compat.NewDefaultMatrix(false), emitter, logr.Discard())
	return v, sink, func() {
		if err := emitter.Close(context.Background()); err != nil {
			t.Fatalf("close emitter: %v", err)
		}
	}
}

func TestValidateStableOnStableCompatible(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.2.0", semverx.RangeStable),
			comp("B", "1.0.0", semverx.RangeStable),
		},
		[]semverx.DependencyEdge{dep("A", "B", ">=1.0.0")},
	)

	if verdict.Severity != Compatible {
		t.Fatalf("expected Compatible, got %s (%+v)", verdict.Severity, verdict.Offending)
	}
	if len(verdict.Offending) != 0 {
		t.Fatalf("expected no offending edges, got %d", len(verdict.Offending))
	}
}

func TestValidateStableDeniesExperimental(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.2.0", semverx.RangeStable),
			comp("B", "2.0.0-alpha.1", semverx.RangeExperimental),
		},
		[]semverx.DependencyEdge{dep("A", "B", ">=1.0.0-0")},
	)

	if verdict.Severity != Incompatible {
		t.Fatalf("expected Incompatible, got %s", verdict.Severity)
	}
}

func TestValidateExperimentalOnLegacyRequiresOverride(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeExperimental),
			comp("B", "0.9.0", semverx.RangeLegacy),
		},
		[]semverx.DependencyEdge{dep("A", "B", "*")},
	)

	if verdict.Severity != RequiresOverride {
		t.Fatalf("expected RequiresOverride, got %s", verdict.Severity)
	}
}

func TestValidateOptInDowngradesToDegraded(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "0.9.0", semverx.RangeLegacy),
		},
		[]semverx.DependencyEdge{dep("A", "B", "*", semverx.RangeLegacy)},
	)

	if verdict.Severity != Degraded {
		t.Fatalf("expected Degraded for opted-in legacy producer, got %s", verdict.Severity)
	}
}

func TestValidateExperimentalOptInKeepsOverridePath(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	// Stable->experimental is Deny by default; the explicit opt-in keeps the
	// edge on the audit path instead of blocking it.
	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "2.0.0", semverx.RangeExperimental),
		},
		[]semverx.DependencyEdge{dep("A", "B", "*", semverx.RangeExperimental)},
	)

	if verdict.Severity != RequiresOverride {
		t.Fatalf("expected RequiresOverride for opted-in experimental producer, got %s", verdict.Severity)
	}
}

func TestValidateUnresolvedProducer(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{comp("A", "1.0.0", semverx.RangeStable)},
		[]semverx.DependencyEdge{dep("A", "missing", "*")},
	)

	if verdict.Severity != Incompatible {
		t.Fatalf("expected Incompatible for unresolved producer, got %s", verdict.Severity)
	}
	if len(verdict.Offending) != 1 {
		t.Fatalf("expected 1 offending edge, got %d", len(verdict.Offending))
	}
}

func TestValidateConstraintUnmet(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "0.9.0", semverx.RangeStable),
		},
		[]semverx.DependencyEdge{dep("A", "B", ">=1.0.0")},
	)

	if verdict.Severity != Incompatible {
		t.Fatalf("expected Incompatible for unmet constraint, got %s", verdict.Severity)
	}
}

func TestValidatePicksHighestSatisfyingProducer(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "1.0.0", semverx.RangeStable),
			comp("B", "1.5.0", semverx.RangeStable),
			comp("B", "2.0.0", semverx.RangeExperimental),
		},
		[]semverx.DependencyEdge{dep("A", "B", ">=1.0.0 <2.0.0")},
	)

	if verdict.Severity != Compatible {
		t.Fatalf("expected Compatible, got %s", verdict.Severity)
	}
	if got := verdict.Outcomes[0].Producer.Version.String(); got != "1.5.0" {
		t.Fatalf("expected producer 1.5.0, got %s", got)
	}
}

func TestValidateCyclesAreLegal(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "1.0.0", semverx.RangeStable),
		},
		[]semverx.DependencyEdge{
			dep("A", "B", "*"),
			dep("B", "A", "*"),
		},
	)

	if verdict.Severity != Compatible {
		t.Fatalf("expected cycle of compatible edges to be Compatible, got %s", verdict.Severity)
	}
}

func TestValidateAggregatesWorstSeverity(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "1.0.0", semverx.RangeStable),
			comp("C", "0.5.0", semverx.RangeLegacy),
			comp("D", "2.0.0", semverx.RangeExperimental),
		},
		[]semverx.DependencyEdge{
			dep("A", "B", "*"), // compatible
			dep("A", "C", "*"), // requires override
			dep("A", "D", "*"), // incompatible
		},
	)

	if verdict.Severity != Incompatible {
		t.Fatalf("expected worst severity Incompatible, got %s", verdict.Severity)
	}
	if len(verdict.Offending) != 2 {
		t.Fatalf("expected 2 offending edges, got %d", len(verdict.Offending))
	}

	var worst Severity
	for _, o := range verdict.Outcomes {
		if o.Severity > worst {
			worst = o.Severity
		}
	}
	if verdict.Severity != worst {
		t.Fatalf("verdict severity %s != max edge severity %s", verdict.Severity, worst)
	}
}

func TestValidateDeterministic(t *testing.T) {
	v, _, done := newValidator(t)
	defer done()

	components := []semverx.Component{
		comp("A", "1.0.0", semverx.RangeStable),
		comp("B", "1.0.0", semverx.RangeStable),
		comp("C", "0.5.0", semverx.RangeLegacy),
	}
	edges := []semverx.DependencyEdge{
		dep("A", "B", ">=1.0.0"),
		dep("B", "C", "*"),
	}

	first := v.Validate(context.Background(), components, edges)
	second := v.Validate(context.Background(), components, edges)

	if first.Severity != second.Severity {
		t.Fatalf("severity differs across runs: %s vs %s", first.Severity, second.Severity)
	}
	strip := func(v GraphVerdict) GraphVerdict {
		v.TraceID = ""
		return v
	}
	if !reflect.DeepEqual(strip(first), strip(second)) {
		t.Fatalf("verdicts differ across identical runs")
	}
}

func TestValidateEmitsOneEventPerEdgePlusGraph(t *testing.T) {
	v, sink, done := newValidator(t)

	verdict := v.Validate(context.Background(),
		[]semverx.Component{
			comp("A", "1.0.0", semverx.RangeStable),
			comp("B", "1.0.0", semverx.RangeStable),
		},
		[]semverx.DependencyEdge{
			dep("A", "B", "*"),
			dep("B", "A", "*"),
		},
	)
	done() // flush the emitter

	events := sink.Events()
	if len(events) != 3 {
		t.Fatalf("expected 2 edge events + 1 graph event, got %d", len(events))
	}
	for i, ev := range events {
		if ev.TraceID != verdict.TraceID {
			t.Fatalf("event %d carries trace %q, want %q", i, ev.TraceID, verdict.TraceID)
		}
	}
	if events[0].Kind != etps.KindEdgeValidated || events[2].Kind != etps.KindGraphValidated {
		t.Fatalf("unexpected event kinds: %s ... %s", events[0].Kind, events[2].Kind)
	}
}
