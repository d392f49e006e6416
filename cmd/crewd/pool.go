package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/config"
	"github.com/Pricepro2006/crewd/internal/render"
)

func poolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect the agent pool configuration",
		Long: `Show the registered capabilities and the pool a fresh crewd
process would start with.

Pools are per-process; this reflects configuration, not a running
daemon.`,
		Run: func(cmd *cobra.Command, args []string) {
			env := config.Env()
			workDir, _ := os.Getwd()

			pool := agent.NewPoolRegistry(agent.PoolConfig{
				MaxAgents:   env.MaxAgents,
				IdleTimeout: env.AgentIdleTimeout,
				Preload:     []string{agent.TypeResearch},
			})
			for tag, factory := range agent.DefaultFactories(workDir) {
				pool.RegisterCapability(tag, factory)
			}
			pool.Initialize(cmd.Context())
			defer pool.Shutdown()

			fmt.Printf("maxAgents=%d idleTimeout=%s\n\n", env.MaxAgents, env.AgentIdleTimeout)
			fmt.Print(render.New(pretty).PoolStatus(pool.PoolStatus(), pool.ActiveAgents()))
		},
	}

	return cmd
}
