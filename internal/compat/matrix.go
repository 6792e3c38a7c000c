// Package compat holds the range-state compatibility matrix consulted for
// every dependency edge and every hot-swap transition.
package compat

import (
	"fmt"

	"github.com/linkgate-platform/linkgate/internal/semverx"
)

// Decision is the matrix outcome for one (consumer, producer) pair.
type Decision string

const (
	// Allow permits the interaction outright.
	Allow Decision = "allow"
	// AllowWithOverride permits the interaction but flags it for audit;
	// without an explicit opt-in on the edge it surfaces as RequiresOverride.
	AllowWithOverride Decision = "allow_with_override"
	// Deny blocks the interaction.
	Deny Decision = "deny"
)

func (d Decision) String() string { return string(d) }

type pair struct {
	consumer semverx.RangeState
	producer semverx.RangeState
}

// Matrix is a fixed, total 3x3 rule table mapping
// (consumer range state, producer range state) to a Decision.
//
// It is read-only after construction; Lookup is a pure function.
type Matrix struct {
	rules map[pair]Decision
}

// NewDefaultMatrix builds the default policy table:
//
//	consumer \ producer   legacy              stable   experimental
//	legacy                allow               allow    deny
//	stable                allow_with_override allow    deny
//	experimental          allow_with_override allow    allow
//
// With allowExperimentalOverride set, the stable->experimental cell becomes
// allow_with_override instead of deny, so stable consumers can take
// experimental producers through the audit path.
func NewDefaultMatrix(allowExperimentalOverride bool) *Matrix {
	stableExperimental := Deny
	if allowExperimentalOverride {
		stableExperimental = AllowWithOverride
	}
	return &Matrix{rules: map[pair]Decision{
		{semverx.RangeLegacy, semverx.RangeLegacy}:       Allow,
		{semverx.RangeLegacy, semverx.RangeStable}:       Allow,
		{semverx.RangeLegacy, semverx.RangeExperimental}: Deny,

		{semverx.RangeStable, semverx.RangeLegacy}:       AllowWithOverride,
		{semverx.RangeStable, semverx.RangeStable}:       Allow,
		{semverx.RangeStable, semverx.RangeExperimental}: stableExperimental,

		{semverx.RangeExperimental, semverx.RangeLegacy}:       AllowWithOverride,
		{semverx.RangeExperimental, semverx.RangeStable}:       Allow,
		{semverx.RangeExperimental, semverx.RangeExperimental}: Allow,
	}}
}

// NewMatrix builds a matrix from an explicit rule table. The table must be
// total: one Decision for every (consumer, producer) pair of valid states.
func NewMatrix(rules map[[2]semverx.RangeState]Decision) (*Matrix, error) {
	m := &Matrix{rules: make(map[pair]Decision, 9)}
	for _, consumer := range semverx.RangeStates() {
		for _, producer := range semverx.RangeStates() {
			d, ok := rules[[2]semverx.RangeState{consumer, producer}]
			if !ok {
				return nil, fmt.Errorf("compat: rule table missing (%s, %s)", consumer, producer)
			}
			switch d {
			case Allow, AllowWithOverride, Deny:
			default:
				return nil, fmt.Errorf("compat: invalid decision %q for (%s, %s)", d, consumer, producer)
			}
			m.rules[pair{consumer, producer}] = d
		}
	}
	return m, nil
}

// Lookup returns the Decision for a consumer in state consumer depending on a
// producer in state producer. Unknown states deny.
func (m *Matrix) Lookup(consumer, producer semverx.RangeState) Decision {
	d, ok := m.rules[pair{consumer, producer}]
	if !ok {
		return Deny
	}
	return d
}
