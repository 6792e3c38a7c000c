// Package semverx models component declarations for the compatibility layer:
// a semantic version extended with a lifecycle range state.
package semverx

import (
	"fmt"
	"strings"

	"github.com/linkgate-platform/linkgate/internal/semver"
)

// RangeState is the lifecycle tier of a component version.
//
// It is a closed set. Interaction legality between two range states is
// defined by the compatibility matrix, never by comparing states to each
// other: experimental is not "newer" than stable.
type RangeState string

const (
	RangeLegacy       RangeState = "legacy"
	RangeStable       RangeState = "stable"
	RangeExperimental RangeState = "experimental"
)

// RangeStates lists every valid state, in declaration order.
func RangeStates() []RangeState {
	return []RangeState{RangeLegacy, RangeStable, RangeExperimental}
}

func (s RangeState) Valid() bool {
	switch s {
	case RangeLegacy, RangeStable, RangeExperimental:
		return true
	}
	return false
}

func (s RangeState) String() string { return string(s) }

// ParseRangeState maps declaration text onto a RangeState.
func ParseRangeState(raw string) (RangeState, error) {
	s := RangeState(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("semverx: unknown range state %q", raw)
	}
	return s, nil
}

// Component is one declared component version.
//
// Identity is ID; several versions of the same ID may coexist in a declared
// set, but at most one is active per runtime slot.
type Component struct {
	ID         string
	Version    semver.Version
	RangeState RangeState

	// HotSwapEnabled marks the component as eligible for runtime
	// replacement. Components without it can only change across restarts.
	HotSwapEnabled bool

	// MigrationPolicy is free-form operator guidance carried into telemetry
	// events, e.g. "manual-review" or "auto".
	MigrationPolicy string
}

func (c Component) String() string {
	return fmt.Sprintf("%s v%s (%s)", c.ID, c.Version, c.RangeState)
}

// DependencyEdge declares that a consumer component uses a producer
// component, under a version constraint and an optional range-state opt-in.
type DependencyEdge struct {
	ConsumerID        string
	ProducerID        string
	VersionConstraint semver.Constraint

	// AcceptedRangeStates is the consumer's explicit opt-in to producer
	// range states that the default policy would flag or deny. Empty means
	// no opt-in beyond the matrix defaults.
	AcceptedRangeStates []RangeState
}

// Accepts reports whether the edge explicitly opted in to producers in s.
func (e DependencyEdge) Accepts(s RangeState) bool {
	for _, accepted := range e.AcceptedRangeStates {
		if accepted == s {
			return true
		}
	}
	return false
}

func (e DependencyEdge) String() string {
	return fmt.Sprintf("%s -> %s (%s)", e.ConsumerID, e.ProducerID, e.VersionConstraint)
}
