// Package main provides the crewd CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pricepro2006/crewd/internal/render"
)

var (
	version = "0.1.0"
	pretty  = true
)

func main() {
	pretty = render.Pretty()

	rootCmd := &cobra.Command{
		Use:   "crewd",
		Short: "crewd - plan orchestration engine",
		Long: `crewd plans, executes, and reviews multi-step requests against a
pool of capability-tagged agents.

Use 'crewd run "<query>"' to orchestrate a request.
Use 'crewd pool' to inspect the agent pool.
Use 'crewd history' to list past runs.`,
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", pretty, "Pretty print output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(poolCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show crewd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crewd version %s\n", version)
		},
	}
}
