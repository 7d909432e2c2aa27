package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cairn",
	Short: "Hierarchical planning and execution engine",
	Long: `Cairn turns a natural-language development request into a planned,
budgeted, and gated execution hierarchy.

A request is classified by domain and intent, scored for complexity,
and materialized into as much hierarchy as it warrants: a small fix
becomes a single task list, a product vision becomes epics, roadmaps,
phase plans, and tasks. Execution then walks the tree through staged
gates, metering token budgets and rolling progress back up to the root.

Core workflow:
  cairn plan "build a checkout flow with saved carts"
  cairn run <vision-slug>
  cairn status --watch

State lives in the .cairn directory next to your code: node files as
YAML, the audit log and checkpoints as SQLite, control signals as
plain files.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
