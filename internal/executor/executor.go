// Package executor drives plan steps one at a time through context
// gathering, agent dispatch, timeout enforcement, and result
// normalization, with an early-halt backpressure policy.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/logging"
	"github.com/Pricepro2006/crewd/internal/plan"
	"github.com/Pricepro2006/crewd/internal/retrieval"
	"github.com/Pricepro2006/crewd/internal/schedule"
)

// AgentPool is the slice of the pool registry the executor needs.
type AgentPool interface {
	Acquire(ctx context.Context, tag string) (agent.Agent, error)
	Release(tag string, inst agent.Agent)
}

// Timeouts bounds each stage of a step's execution.
type Timeouts struct {
	Context time.Duration // context retrieval
	Agent   time.Duration // general agent execution
	Tool    time.Duration // named-tool execution
}

// DefaultTimeouts returns the standard stage timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Context: 5 * time.Second,
		Agent:   120 * time.Second,
		Tool:    60 * time.Second,
	}
}

// Executor runs one plan at a time; steps within a plan are strictly
// sequential. Separate plans may run on separate Executor calls
// concurrently, they share nothing but the pool.
type Executor struct {
	pool     AgentPool
	searcher retrieval.Searcher
	timeouts Timeouts
	topK     int
	log      *logging.Logger
}

// New creates an executor. searcher may be nil, which disables context
// gathering (every step sees an empty context).
func New(pool AgentPool, searcher retrieval.Searcher, timeouts Timeouts) *Executor {
	if timeouts.Context <= 0 {
		timeouts.Context = DefaultTimeouts().Context
	}
	if timeouts.Agent <= 0 {
		timeouts.Agent = DefaultTimeouts().Agent
	}
	if timeouts.Tool <= 0 {
		timeouts.Tool = DefaultTimeouts().Tool
	}
	return &Executor{
		pool:     pool,
		searcher: searcher,
		timeouts: timeouts,
		topK:     5,
		log:      logging.New("executor"),
	}
}

// Execute schedules and runs the plan's steps, producing one
// ExecutionResult. No step failure, worker error, or timeout propagates
// as an error; every failure mode becomes a failed StepResult.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) *plan.ExecutionResult {
	start := time.Now()
	log := e.log.WithPlan(p.ID)

	ordered := schedule.Order(p)

	succeeded := make(map[string]bool, len(ordered))
	var results []plan.StepResult
	halted := false

	for _, step := range ordered {
		if ctx.Err() != nil {
			halted = true
			break
		}

		res := e.runStep(ctx, log, step, succeeded)
		results = append(results, res)
		if res.Success {
			succeeded[step.ID] = true
		}

		if e.shouldHalt(results, len(ordered)) {
			log.Warn("backpressure_halt", map[string]interface{}{
				"produced":  len(results),
				"remaining": len(ordered) - len(results),
			}, nil)
			halted = true
			break
		}
	}

	result := plan.BuildExecutionResult(p.ID, results)
	log.TimedEvent("plan_executed", start, map[string]interface{}{
		"success":   result.Success,
		"completed": result.CompletedSteps,
		"failed":    result.FailedSteps,
		"halted":    halted,
	})
	return result
}

// shouldHalt applies the backpressure policy: stop when executed
// failures exceed half of the plan's steps, or any failure is
// classified critical. Skipped steps never executed and do not count.
func (e *Executor) shouldHalt(results []plan.StepResult, total int) bool {
	failed := 0
	for _, r := range results {
		if r.Success || r.Skipped() {
			continue
		}
		if r.Critical() {
			return true
		}
		failed++
	}
	return failed > total/2
}

func (e *Executor) runStep(ctx context.Context, log *logging.Logger, step plan.Step, succeeded map[string]bool) plan.StepResult {
	slog := log.WithStep(step.ID)
	start := time.Now()

	// Dependency gate. Only successfully executed dependencies count.
	for _, dep := range step.Dependencies {
		if !succeeded[dep] {
			slog.Debug("step_skipped", map[string]interface{}{"missing_dep": dep})
			return plan.StepResult{
				StepID:  step.ID,
				Success: false,
				Error:   "Dependencies not satisfied",
				Metadata: map[string]any{
					plan.MetaSkipped: true,
				},
			}
		}
	}

	docs, relevance := e.gatherContext(ctx, slog, step)

	res := e.dispatch(ctx, slog, step, docs)
	if res.Metadata == nil {
		res.Metadata = make(map[string]any)
	}
	res.Metadata[plan.MetaContextRelevance] = relevance
	res.Metadata[plan.MetaDurationMs] = time.Since(start).Milliseconds()
	return res
}

// gatherContext retrieves advisory documents for the step. Retrieval is
// never required: failures and timeouts degrade to an empty context
// with relevance zero.
func (e *Executor) gatherContext(ctx context.Context, log *logging.Logger, step plan.Step) ([]retrieval.Document, float32) {
	if e.searcher == nil || step.RAGQuery == "" {
		return nil, 0
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeouts.Context)
	defer cancel()

	type searchOut struct {
		docs []retrieval.Document
		err  error
	}
	ch := make(chan searchOut, 1)
	go func() {
		defer logging.Recover("executor")
		docs, err := e.searcher.Search(cctx, step.RAGQuery, e.topK)
		ch <- searchOut{docs, err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			log.Warn("context_retrieval_failed", nil, out.err)
			return nil, 0
		}
		var relevance float32
		for _, d := range out.docs {
			if d.Score > relevance {
				relevance = d.Score
			}
		}
		return out.docs, relevance
	case <-cctx.Done():
		log.Warn("context_retrieval_timeout", map[string]interface{}{
			"timeout_ms": e.timeouts.Context.Milliseconds(),
		}, nil)
		return nil, 0
	}
}

// dispatch acquires an agent and runs the step's work, bounded by the
// stage timeout. A timed-out call is abandoned: it may still complete
// in the background, its result discarded.
func (e *Executor) dispatch(ctx context.Context, log *logging.Logger, step plan.Step, docs []retrieval.Document) plan.StepResult {
	inst, err := e.pool.Acquire(ctx, step.AgentType)
	if err != nil {
		return plan.StepResult{
			StepID:  step.ID,
			Success: false,
			Error:   fmt.Sprintf("acquire agent: %s", err),
		}
	}
	defer e.pool.Release(step.AgentType, inst)

	if step.RequiresTool {
		tool, ok := inst.GetTool(step.ToolName)
		if !ok {
			return plan.StepResult{
				StepID:  step.ID,
				Success: false,
				Error:   agent.ErrToolNotFound.Error(),
			}
		}

		res, timedOut := e.invoke(ctx, e.timeouts.Tool, func(cctx context.Context) (*agent.Result, error) {
			return tool.Execute(cctx, agent.ToolInput{
				Task:       step.Description,
				Context:    docs,
				Parameters: step.Parameters,
			})
		})
		sr := e.normalize(step, res, timedOut, e.timeouts.Tool)
		if sr.Metadata == nil {
			sr.Metadata = make(map[string]any)
		}
		sr.Metadata[plan.MetaToolUsed] = step.ToolName
		return sr
	}

	res, timedOut := e.invoke(ctx, e.timeouts.Agent, func(cctx context.Context) (*agent.Result, error) {
		return inst.Execute(cctx, step.Description, docs)
	})
	return e.normalize(step, res, timedOut, e.timeouts.Agent)
}

type invokeOut struct {
	res *agent.Result
	err error
}

// invoke races fn against the stage deadline. The deadline context is
// handed to fn so well-behaved implementations cancel early, but the
// caller stops waiting at the deadline either way.
func (e *Executor) invoke(ctx context.Context, timeout time.Duration, fn func(context.Context) (*agent.Result, error)) (invokeOut, bool) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan invokeOut, 1)
	go func() {
		defer logging.Recover("executor")
		res, err := fn(cctx)
		ch <- invokeOut{res, err}
	}()

	select {
	case out := <-ch:
		return out, false
	case <-cctx.Done():
		return invokeOut{}, true
	}
}

// normalize maps a raw agent result (or its absence) into a StepResult.
func (e *Executor) normalize(step plan.Step, out invokeOut, timedOut bool, timeout time.Duration) plan.StepResult {
	if timedOut {
		return plan.StepResult{
			StepID:  step.ID,
			Success: false,
			Error:   fmt.Sprintf("execution exceeded %s", timeout),
			Metadata: map[string]any{
				plan.MetaIsTimeout: true,
				plan.MetaTimeoutMs: timeout.Milliseconds(),
			},
		}
	}
	if out.err != nil {
		return plan.StepResult{
			StepID:  step.ID,
			Success: false,
			Error:   out.err.Error(),
		}
	}
	if out.res == nil {
		return plan.StepResult{
			StepID:  step.ID,
			Success: false,
			Error:   "agent returned no result",
		}
	}

	meta := make(map[string]any, len(out.res.Metadata)+2)
	for k, v := range out.res.Metadata {
		meta[k] = v
	}
	return plan.StepResult{
		StepID:   step.ID,
		Success:  out.res.Success,
		Output:   out.res.Output,
		Data:     out.res.Data,
		Error:    out.res.Error,
		Metadata: meta,
	}
}
