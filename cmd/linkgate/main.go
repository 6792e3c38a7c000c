package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "linkgate",
	Short: "Component compatibility validator for modular linking",
	Long: `linkgate decides whether declared components may be linked or hot-swapped,
based on semantic version constraints and lifecycle range states, and records
every decision as a structured telemetry event.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code up through RunE so deferred
// teardown (log flush, emitter close) runs before the process exits.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrationPlanCmd)
	rootCmd.AddCommand(swapCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.PersistentFlags().String("project", ".", "project root containing pkg.nlink")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the root structured logger for a command invocation.
func newLogger(cmd *cobra.Command) (logr.Logger, func(), error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return logr.Logger{}, nil, err
	}

	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, nil, err
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
