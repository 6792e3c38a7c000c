package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linkgate-platform/linkgate/internal/core"
	"github.com/linkgate-platform/linkgate/internal/etps"
	"github.com/linkgate-platform/linkgate/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate component compatibility across the dependency graph",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().String("out", "", "append telemetry events as JSON lines to this file")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	log, flush, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer flush()

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "project %s: %s\n", p.manifest.Project.Name, summarize(p))

	var sink etps.Sink = etps.NewLogSink(log)
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		sink, err = etps.NewFileSink(out)
		if err != nil {
			return err
		}
	}

	c := core.New(p.coreOptions(sink, log))
	verdict := c.Validator.Validate(cmd.Context(), p.components, p.edges)
	if err := c.Close(context.Background()); err != nil {
		return err
	}

	printVerdict(cmd, verdict)

	if verdict.Blocking() {
		return exitError{code: 2}
	}
	if verdict.Severity == validate.RequiresOverride {
		return exitError{code: 1}
	}
	return nil
}

func printVerdict(cmd *cobra.Command, verdict validate.GraphVerdict) {
	w := cmd.OutOrStdout()
	for _, o := range verdict.Outcomes {
		if o.Severity == validate.Compatible {
			fmt.Fprintf(w, "  ok    %s\n", o.Edge)
			continue
		}
		fmt.Fprintf(w, "  %-5s %s: %s\n", badge(o), o.Edge, o.Reason)
	}
	fmt.Fprintf(w, "verdict: %s (%d offending edges, trace %s)\n",
		verdict.Severity, len(verdict.Offending), verdict.TraceID)
}

func badge(o validate.EdgeOutcome) string {
	switch o.Severity {
	case validate.Degraded:
		return "warn"
	case validate.RequiresOverride:
		return "OVRD"
	case validate.Incompatible:
		return "DENY"
	}
	return "ok"
}
