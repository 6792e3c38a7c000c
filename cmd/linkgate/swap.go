package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkgate-platform/linkgate/internal/core"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/hotswap"
	"github.com/linkgate-platform/linkgate/internal/semver"
	"github.com/linkgate-platform/linkgate/internal/semverx"
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Rehearse a hot swap of one declared component against the policy gate",
	Long: `swap registers the declared active instance of a component, then runs the
full drain/policy/activation sequence against a candidate version without
loading any code. The exit status reflects whether a live swap would be
admitted.`,
	RunE: runSwap,
}

func init() {
	swapCmd.Flags().String("component", "", "component id to swap (required)")
	swapCmd.Flags().String("to-version", "", "candidate version (required)")
	swapCmd.Flags().String("to-range-state", "stable", "candidate range state")
	_ = swapCmd.MarkFlagRequired("component")
	_ = swapCmd.MarkFlagRequired("to-version")
}

func runSwap(cmd *cobra.Command, _ []string) error {
	log, flush, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer flush()

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString("component")
	rawVersion, _ := cmd.Flags().GetString("to-version")
	rawState, _ := cmd.Flags().GetString("to-range-state")

	version, err := semver.ParseVersion(rawVersion)
	if err != nil {
		return err
	}
	state, err := semverx.ParseRangeState(rawState)
	if err != nil {
		return err
	}

	current, ok := activeDeclared(p.components, id)
	if !ok {
		return fmt.Errorf("component %q not declared in project", id)
	}

	c := core.New(p.coreOptions(etps.NewLogSink(log), log))
	defer func() { _ = c.Close(context.Background()) }()

	if err := c.Engine.Register(current); err != nil {
		return err
	}

	next := current
	next.Version = version
	next.RangeState = state

	activator := hotswap.ActivatorFunc(func(context.Context, semverx.Component) error { return nil })
	if err := c.Engine.Swap(cmd.Context(), next, activator); err != nil {
		return fmt.Errorf("swap rehearsal rejected: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "swap admitted: %s -> %s\n", current, next)
	return nil
}

// activeDeclared picks the highest declared version of id as the would-be
// active instance.
func activeDeclared(components []semverx.Component, id string) (semverx.Component, bool) {
	var best semverx.Component
	found := false
	for _, c := range components {
		if c.ID != id {
			continue
		}
		if !found || semver.Compare(c.Version, best.Version) > 0 {
			best = c
			found = true
		}
	}
	return best, found
}
