// Package cli implements the teakit command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teakit",
	Short: "Dependency-aware task pipeline runner",
	Long: `Teakit runs pipelines of shell-command tasks with dependency ordering,
bounded parallelism and live progress reporting.

Pipelines are JSON files declaring tasks, their commands and their
dependencies. Commands may reference Makefile-harvested variables with
$(VAR) and the captured output of upstream tasks with $(OUT:task).
Finished runs are archived to a local SQLite database for later
inspection with "teakit history".`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
