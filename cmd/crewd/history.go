package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pricepro2006/crewd/internal/config"
	"github.com/Pricepro2006/crewd/internal/graph"
	"github.com/Pricepro2006/crewd/internal/history"
	"github.com/Pricepro2006/crewd/internal/render"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past orchestration runs",
		Run: func(cmd *cobra.Command, args []string) {
			store := openHistory()
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Print(render.New(pretty).Runs(runs))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show one run with its step results",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openHistory()
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Print(render.New(pretty).Run(run))
		},
	}

	var graphLimit int
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Summarize plans archived in the graph database",
		Run: func(cmd *cobra.Command, args []string) {
			driver := graph.ConnectWithRetry(graph.ConfigFromEnv(), 3)
			if driver == nil {
				fmt.Fprintln(os.Stderr, "Error: graph database is not configured or unreachable (set CREWD_NEO4J_URI)")
				os.Exit(1)
			}
			defer driver.Close()

			plans, err := graph.RecentPlans(cmd.Context(), driver, graphLimit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			stats, err := graph.Stats(cmd.Context(), driver)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Print(render.New(pretty).ArchivedPlans(plans, stats))
		},
	}
	graphCmd.Flags().IntVarP(&graphLimit, "limit", "n", 20, "Number of plans to show")

	cmd.AddCommand(showCmd, graphCmd)
	return cmd
}

func openHistory() *history.Store {
	store, err := history.New(config.GetPaths().Data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}
