package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the declared component set and policy of a project",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "project: %s\n", p.manifest.Project.Name)
	fmt.Fprintf(w, "declared: %s\n", summarize(p))
	fmt.Fprintf(w, "policy: drain_timeout=%s telemetry_queue_capacity=%d allow_experimental_override=%t\n",
		p.manifest.Policy.DrainTimeout(),
		p.manifest.Policy.TelemetryQueueCapacity,
		p.manifest.Policy.AllowExperimentalOverride,
	)
	for _, c := range p.components {
		swap := ""
		if c.HotSwapEnabled {
			swap = " [hot-swap]"
		}
		fmt.Fprintf(w, "  %s%s\n", c, swap)
	}
	return nil
}
