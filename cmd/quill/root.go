package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagDB      string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Multi-actor task orchestration engine",
	Long: `Quill turns a goal into a plan of tasks and runs them with specialized actors.

A planner breaks the goal into tasks for researchers, analysts, coders,
summarizers, writers and custom actors. The composer repairs the plan into a
single connected dependency graph, then executes it in dependency order,
retrying failed code with the previous attempt's error in context.

Every result is recorded as entries in the board's tables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.config/quill/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database file (overrides store.path)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(actorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
