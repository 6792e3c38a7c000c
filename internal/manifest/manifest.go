// Package manifest loads component declarations and policy options from a
// project's pkg.nlink file and per-component nlink.txt files.
//
// The format is TOML:
//
//	[project]
//	name = "calculator-suite"
//
//	[policy]
//	drain_timeout_ms = 500
//	telemetry_queue_capacity = 1024
//	allow_experimental_override = false
//
//	[[component]]
//	id = "calculator"
//	version = "1.2.0"
//	range_state = "stable"
//	hot_swap = true
//
//	[[dependency]]
//	consumer = "scientific"
//	producer = "calculator"
//	constraint = ">=1.0.0 <2.0.0"
//	accept_range_states = ["legacy"]
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/linkgate-platform/linkgate/internal/semver"
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

// ProjectFileName is the project-level declaration file.
const ProjectFileName = "pkg.nlink"

// ComponentFileName marks a subdirectory as a component and may carry its
// declaration.
const ComponentFileName = "nlink.txt"

// ErrNoProjectFile reports a root without a pkg.nlink.
var ErrNoProjectFile = errors.New("manifest: no pkg.nlink found")

// Manifest is the decoded pkg.nlink document.
type Manifest struct {
	Project      Project          `toml:"project"`
	Policy       Policy           `toml:"policy"`
	Components   []ComponentDecl  `toml:"component"`
	Dependencies []DependencyDecl `toml:"dependency"`
}

type Project struct {
	Name string `toml:"name"`
}

// Policy carries the recognized core construction options.
type Policy struct {
	DrainTimeoutMS            int  `toml:"drain_timeout_ms"`
	TelemetryQueueCapacity    int  `toml:"telemetry_queue_capacity"`
	AllowExperimentalOverride bool `toml:"allow_experimental_override"`
}

// DrainTimeout converts the millisecond field to a duration, zero when
// unset.
func (p Policy) DrainTimeout() time.Duration {
	return time.Duration(p.DrainTimeoutMS) * time.Millisecond
}

type ComponentDecl struct {
	ID              string `toml:"id"`
	Version         string `toml:"version"`
	RangeState      string `toml:"range_state"`
	HotSwap         bool   `toml:"hot_swap"`
	MigrationPolicy string `toml:"migration_policy"`
}

type DependencyDecl struct {
	Consumer          string   `toml:"consumer"`
	Producer          string   `toml:"producer"`
	Constraint        string   `toml:"constraint"`
	AcceptRangeStates []string `toml:"accept_range_states"`
}

// Load decodes a pkg.nlink file and validates its declarations.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", path, err)
	}
	if _, err := m.ComponentSet(); err != nil {
		return nil, err
	}
	if _, err := m.EdgeSet(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ComponentSet converts the declarations into semverx components.
func (m *Manifest) ComponentSet() ([]semverx.Component, error) {
	out := make([]semverx.Component, 0, len(m.Components))
	for _, decl := range m.Components {
		c, err := decl.component()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (d ComponentDecl) component() (semverx.Component, error) {
	if d.ID == "" {
		return semverx.Component{}, errors.New("manifest: component missing id")
	}
	v, err := semver.ParseVersion(d.Version)
	if err != nil {
		return semverx.Component{}, fmt.Errorf("manifest: component %s: %w", d.ID, err)
	}
	state, err := semverx.ParseRangeState(d.RangeState)
	if err != nil {
		return semverx.Component{}, fmt.Errorf("manifest: component %s: %w", d.ID, err)
	}
	return semverx.Component{
		ID:              d.ID,
		Version:         v,
		RangeState:      state,
		HotSwapEnabled:  d.HotSwap,
		MigrationPolicy: d.MigrationPolicy,
	}, nil
}

// EdgeSet converts the dependency declarations into edges.
func (m *Manifest) EdgeSet() ([]semverx.DependencyEdge, error) {
	out := make([]semverx.DependencyEdge, 0, len(m.Dependencies))
	for _, decl := range m.Dependencies {
		if decl.Consumer == "" || decl.Producer == "" {
			return nil, fmt.Errorf("manifest: dependency %q -> %q missing endpoint", decl.Consumer, decl.Producer)
		}
		raw := decl.Constraint
		if raw == "" {
			raw = "*"
		}
		c, err := semver.ParseConstraint(raw)
		if err != nil {
			return nil, fmt.Errorf("manifest: dependency %s -> %s: %w", decl.Consumer, decl.Producer, err)
		}
		var accepted []semverx.RangeState
		for _, rawState := range decl.AcceptRangeStates {
			state, err := semverx.ParseRangeState(rawState)
			if err != nil {
				return nil, fmt.Errorf("manifest: dependency %s -> %s: %w", decl.Consumer, decl.Producer, err)
			}
			accepted = append(accepted, state)
		}
		out = append(out, semverx.DependencyEdge{
			ConsumerID:          decl.Consumer,
			ProducerID:          decl.Producer,
			VersionConstraint:   c,
			AcceptedRangeStates: accepted,
		})
	}
	return out, nil
}

// Discover locates the project manifest at root and merges component
// declarations from immediate subdirectories carrying an nlink.txt.
func Discover(root string) (*Manifest, error) {
	projectPath := filepath.Join(root, ProjectFileName)
	if _, err := os.Stat(projectPath); err != nil {
		return nil, fmt.Errorf("%w in %s", ErrNoProjectFile, root)
	}
	m, err := Load(projectPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("manifest: read project root %s: %w", root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		componentPath := filepath.Join(root, entry.Name(), ComponentFileName)
		if _, err := os.Stat(componentPath); err != nil {
			continue
		}
		sub, err := loadComponentFile(componentPath)
		if err != nil {
			return nil, err
		}
		m.Components = append(m.Components, sub...)
	}

	if _, err := m.ComponentSet(); err != nil {
		return nil, err
	}
	return m, nil
}

// loadComponentFile decodes an nlink.txt, which carries only component
// declarations.
func loadComponentFile(path string) ([]ComponentDecl, error) {
	var doc struct {
		Components []ComponentDecl `toml:"component"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", path, err)
	}
	return doc.Components, nil
}
