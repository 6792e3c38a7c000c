package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/linkgate-platform/linkgate/internal/core"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/manifest"
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

// project is the loaded declaration set of one invocation.
type project struct {
	manifest   *manifest.Manifest
	components []semverx.Component
	edges      []semverx.DependencyEdge
}

func loadProject(cmd *cobra.Command) (*project, error) {
	root, err := cmd.Flags().GetString("project")
	if err != nil {
		return nil, err
	}
	m, err := manifest.Discover(root)
	if err != nil {
		return nil, err
	}
	components, err := m.ComponentSet()
	if err != nil {
		return nil, err
	}
	edges, err := m.EdgeSet()
	if err != nil {
		return nil, err
	}
	return &project{manifest: m, components: components, edges: edges}, nil
}

// coreOptions maps the manifest policy onto core construction options.
func (p *project) coreOptions(sink etps.Sink, log logr.Logger) core.Options {
	return core.Options{
		DrainTimeout:              p.manifest.Policy.DrainTimeout(),
		TelemetryQueueCapacity:    p.manifest.Policy.TelemetryQueueCapacity,
		AllowExperimentalOverride: p.manifest.Policy.AllowExperimentalOverride,
		Sink:                      sink,
		Logger:                    log,
	}
}

func summarize(p *project) string {
	byState := map[semverx.RangeState]int{}
	swappable := 0
	for _, c := range p.components {
		byState[c.RangeState]++
		if c.HotSwapEnabled {
			swappable++
		}
	}
	return fmt.Sprintf("%d components (%d legacy, %d stable, %d experimental, %d hot-swappable), %d dependency edges",
		len(p.components),
		byState[semverx.RangeLegacy],
		byState[semverx.RangeStable],
		byState[semverx.RangeExperimental],
		swappable,
		len(p.edges),
	)
}
