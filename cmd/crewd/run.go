package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/config"
	"github.com/Pricepro2006/crewd/internal/executor"
	"github.com/Pricepro2006/crewd/internal/graph"
	"github.com/Pricepro2006/crewd/internal/history"
	"github.com/Pricepro2006/crewd/internal/logging"
	"github.com/Pricepro2006/crewd/internal/orchestrator"
	"github.com/Pricepro2006/crewd/internal/plan"
	"github.com/Pricepro2006/crewd/internal/render"
	"github.com/Pricepro2006/crewd/internal/retrieval"
)

func runCmd() *cobra.Command {
	var workDir string
	var noSave bool

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Orchestrate a request end to end",
		Long: `Create a plan for the query, execute it against the agent pool,
review the outcome, and replan within bounded attempts.

Examples:
  crewd run "summarize the recent changes"
  crewd run "compare the two config formats"
  crewd run --dir ~/project "which files define the server"`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			query := strings.Join(args, " ")
			if workDir == "" {
				workDir, _ = os.Getwd()
			}

			handler := logging.NewRecoveryHandler("cli")
			var success bool
			err := handler.WrapError(func() error {
				var runErr error
				success, runErr = runQuery(cmd.Context(), query, workDir, noSave)
				return runErr
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error: the request could not be processed")
				os.Exit(1)
			}
			if !success {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&workDir, "dir", "d", "", "Workspace directory for file tools")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Skip recording the run in history")

	return cmd
}

// recordingExecutor remembers the last plan and result so the run can
// be archived after the control loop finishes.
type recordingExecutor struct {
	inner    orchestrator.PlanExecutor
	lastPlan *plan.Plan
	lastRes  *plan.ExecutionResult
}

func (r *recordingExecutor) Execute(ctx context.Context, p *plan.Plan) *plan.ExecutionResult {
	res := r.inner.Execute(ctx, p)
	if res != nil {
		r.lastPlan = p
		r.lastRes = res
	}
	return res
}

func runQuery(ctx context.Context, query, workDir string, noSave bool) (bool, error) {
	env := config.Env()
	paths := config.GetPaths()
	log := logging.New("cli")

	pool := agent.NewPoolRegistry(agent.PoolConfig{
		MaxAgents:   env.MaxAgents,
		IdleTimeout: env.AgentIdleTimeout,
		Preload:     []string{agent.TypeResearch},
	})
	for tag, factory := range agent.DefaultFactories(workDir) {
		pool.RegisterCapability(tag, factory)
	}
	pool.Initialize(ctx)
	defer pool.Shutdown()

	if err := config.EnsureDir(paths.Vectors); err != nil {
		return false, fmt.Errorf("prepare vector dir: %w", err)
	}
	store, err := retrieval.NewVectorStore(paths.Vectors, retrieval.NewLocalEmbedder(0))
	if err != nil {
		return false, fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	rec := &recordingExecutor{inner: executor.New(pool, store, executor.DefaultTimeouts())}
	o := orchestrator.New(
		orchestrator.HeuristicPlanner{},
		orchestrator.ResultReviewer{},
		rec,
		orchestrator.Config{
			MaxAttempts:  env.MaxAttempts,
			MaxTotalTime: env.MaxTotalTime,
			Timeouts:     orchestrator.DefaultTimeouts(),
		},
	)

	resp := o.Process(ctx, query)

	if rec.lastRes != nil {
		if b := graph.ConnectWithRetry(graph.ConfigFromEnv(), 3); b != nil {
			graph.NewArchiver(b).ArchiveRun(ctx, rec.lastPlan, rec.lastRes)
			b.Close()
		}

		if !noSave {
			if err := saveRun(ctx, paths.Data, query, resp, rec.lastRes); err != nil {
				log.Warn("history_save_failed", nil, err)
			}
		}
	}

	fmt.Print(render.New(pretty).Response(resp))
	return resp.Success, nil
}

func saveRun(ctx context.Context, dataDir, query string, resp *plan.Response, res *plan.ExecutionResult) error {
	store, err := history.New(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	replans, _ := resp.Metadata["replans"].(int)
	_, err = store.SaveRun(ctx, query, res, replans)
	return err
}
