package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkgate-platform/linkgate/internal/core"
	"github.com/linkgate-platform/linkgate/internal/etps"
)

var migrationPlanCmd = &cobra.Command{
	Use:   "migration-plan",
	Short: "Validate the project and export the audit trail as a JSON document",
	RunE:  runMigrationPlan,
}

func init() {
	migrationPlanCmd.Flags().String("out", "etps_events.json", "output path for the audit document")
}

func runMigrationPlan(cmd *cobra.Command, _ []string) error {
	log, flush, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer flush()

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	sink := etps.NewMemorySink()
	c := core.New(p.coreOptions(sink, log))
	verdict := c.Validator.Validate(cmd.Context(), p.components, p.edges)
	if err := c.Close(context.Background()); err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()

	if err := etps.ExportJSON(f, sink.Events()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verdict %s; %d events exported to %s\n",
		verdict.Severity, len(sink.Events()), out)
	return nil
}
