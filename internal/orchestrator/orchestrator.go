// Package orchestrator runs the outer plan control loop: create a plan,
// execute it, review the outcome, and replan within bounded attempts
// and a wall-clock budget.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/Pricepro2006/crewd/internal/logging"
	"github.com/Pricepro2006/crewd/internal/plan"
)

// Planner generates and regenerates plans. Implementations never return
// an error: on internal failure they return a deterministic fallback
// plan (see FallbackPlan), so the loop always has something to execute.
type Planner interface {
	CreatePlan(ctx context.Context, query string) *plan.Plan
	Replan(ctx context.Context, query string, failed *plan.Plan, review plan.ReviewResult) *plan.Plan
}

// Reviewer judges one execution attempt. Implementations never return
// an error: on internal failure they return a verdict derived from the
// execution result (see FallbackReview).
type Reviewer interface {
	Review(ctx context.Context, p *plan.Plan, res *plan.ExecutionResult) plan.ReviewResult
}

// PlanExecutor is the scheduler+executor pipeline the loop drives.
type PlanExecutor interface {
	Execute(ctx context.Context, p *plan.Plan) *plan.ExecutionResult
}

// Timeouts bounds each external call the control loop makes.
type Timeouts struct {
	PlanCreation time.Duration
	Review       time.Duration
	Execution    time.Duration
}

// DefaultTimeouts returns the standard control-loop timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		PlanCreation: 30 * time.Second,
		Review:       30 * time.Second,
		Execution:    300 * time.Second,
	}
}

// Config bounds the retry behaviour of one orchestrated request.
type Config struct {
	// MaxAttempts is the number of replans allowed per request.
	MaxAttempts int

	// MaxTotalTime is the wall-clock budget measured from the start of
	// the execute/review/replan loop.
	MaxTotalTime time.Duration

	Timeouts Timeouts
}

// DefaultConfig returns the standard control-loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		MaxTotalTime: 120 * time.Second,
		Timeouts:     DefaultTimeouts(),
	}
}

// infraLimitationMarker is the review-feedback classification that
// suppresses further replanning even though the verdict was
// unsatisfactory.
const infraLimitationMarker = "infrastructure limitation"

// Orchestrator is the plan control loop.
type Orchestrator struct {
	planner  Planner
	reviewer Reviewer
	executor PlanExecutor
	cfg      Config
	log      *logging.Logger
}

// New creates an orchestrator.
func New(planner Planner, reviewer Reviewer, executor PlanExecutor, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.MaxTotalTime <= 0 {
		cfg.MaxTotalTime = DefaultConfig().MaxTotalTime
	}
	if cfg.Timeouts.PlanCreation <= 0 {
		cfg.Timeouts.PlanCreation = DefaultTimeouts().PlanCreation
	}
	if cfg.Timeouts.Review <= 0 {
		cfg.Timeouts.Review = DefaultTimeouts().Review
	}
	if cfg.Timeouts.Execution <= 0 {
		cfg.Timeouts.Execution = DefaultTimeouts().Execution
	}
	return &Orchestrator{
		planner:  planner,
		reviewer: reviewer,
		executor: executor,
		cfg:      cfg,
		log:      logging.New("control-loop"),
	}
}

// Process orchestrates one request end to end and formats the caller
// -facing response. No collaborator failure propagates as an error; an
// exhausted outer deadline yields a graceful degraded response.
func (o *Orchestrator) Process(ctx context.Context, query string) *plan.Response {
	current := o.createPlan(ctx, query)
	log := o.log.WithPlan(current.ID)

	start := time.Now()
	attempts := 0
	var result *plan.ExecutionResult
	var review plan.ReviewResult

	for {
		if ctx.Err() != nil {
			return o.timedOutResponse(result)
		}

		current.Status = plan.StatusExecuting
		result = o.execute(ctx, current)
		if result == nil {
			// The execution deadline expired with nothing produced.
			return o.timedOutResponse(nil)
		}

		current.Status = plan.StatusReviewed
		review = o.review(ctx, current, result)

		if review.Satisfactory {
			log.Info("review_satisfactory", map[string]interface{}{"attempts": attempts})
			break
		}
		if attempts >= o.cfg.MaxAttempts {
			log.Warn("attempts_exhausted", map[string]interface{}{"attempts": attempts}, nil)
			break
		}
		if time.Since(start) > o.cfg.MaxTotalTime {
			log.Warn("time_budget_exhausted", map[string]interface{}{
				"elapsed_ms": time.Since(start).Milliseconds(),
			}, nil)
			break
		}
		if isInfrastructureLimitation(review) {
			log.Warn("infrastructure_limitation", map[string]interface{}{
				"feedback": review.Feedback,
			}, nil)
			break
		}

		current.Status = plan.StatusReplanning
		next := o.replan(ctx, query, current, review)
		next.ReplanCount = current.ReplanCount + 1
		current = next
		log = o.log.WithPlan(current.ID)
		attempts++
	}

	current.Status = plan.StatusDone
	return o.formatResponse(result, attempts)
}

// createPlan calls the planner bounded by the plan-creation timeout.
// The planner contract already guarantees a fallback plan on internal
// failure; racing the deadline here additionally covers a hung planner.
func (o *Orchestrator) createPlan(ctx context.Context, query string) *plan.Plan {
	p := raceWithDeadline(ctx, o.cfg.Timeouts.PlanCreation, func(cctx context.Context) *plan.Plan {
		return o.planner.CreatePlan(cctx, query)
	})
	if p == nil || len(p.Steps) == 0 {
		o.log.Warn("planner_fallback", nil, nil)
		return FallbackPlan(query)
	}
	return p
}

func (o *Orchestrator) replan(ctx context.Context, query string, failed *plan.Plan, review plan.ReviewResult) *plan.Plan {
	p := raceWithDeadline(ctx, o.cfg.Timeouts.PlanCreation, func(cctx context.Context) *plan.Plan {
		return o.planner.Replan(cctx, query, failed, review)
	})
	if p == nil || len(p.Steps) == 0 {
		o.log.Warn("replanner_fallback", nil, nil)
		return FallbackPlan(query)
	}
	return p
}

func (o *Orchestrator) execute(ctx context.Context, p *plan.Plan) *plan.ExecutionResult {
	return raceWithDeadline(ctx, o.cfg.Timeouts.Execution, func(cctx context.Context) *plan.ExecutionResult {
		return o.executor.Execute(cctx, p)
	})
}

func (o *Orchestrator) review(ctx context.Context, p *plan.Plan, res *plan.ExecutionResult) plan.ReviewResult {
	out := raceWithDeadline(ctx, o.cfg.Timeouts.Review, func(cctx context.Context) *plan.ReviewResult {
		r := o.reviewer.Review(cctx, p, res)
		return &r
	})
	if out == nil {
		o.log.Warn("reviewer_fallback", nil, nil)
		return FallbackReview(res)
	}
	return *out
}

// isInfrastructureLimitation reports whether the unsatisfactory verdict
// names no concrete failed steps and classifies itself as an
// infrastructure limitation. Replanning cannot help in that case.
func isInfrastructureLimitation(review plan.ReviewResult) bool {
	return len(review.FailedSteps) == 0 &&
		strings.Contains(strings.ToLower(review.Feedback), infraLimitationMarker)
}

func (o *Orchestrator) formatResponse(result *plan.ExecutionResult, attempts int) *plan.Response {
	if result == nil {
		return o.timedOutResponse(nil)
	}
	return &plan.Response{
		Success: result.Success,
		Summary: result.Summary,
		Metadata: map[string]any{
			"planId":          result.PlanID,
			"totalSteps":      len(result.StepResults),
			"successfulSteps": result.CompletedSteps,
			"failedSteps":     result.FailedSteps,
			"replans":         attempts,
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// timedOutResponse converts an exhausted outer deadline into a graceful
// user-facing result instead of an unhandled failure.
func (o *Orchestrator) timedOutResponse(partial *plan.ExecutionResult) *plan.Response {
	resp := &plan.Response{
		Success: false,
		Summary: "The request took too long to process. Please try a simpler query.",
		Metadata: map[string]any{
			"timedOut":  true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if partial != nil {
		resp.Metadata["planId"] = partial.PlanID
		resp.Metadata["successfulSteps"] = partial.CompletedSteps
		resp.Metadata["failedSteps"] = partial.FailedSteps
	}
	return resp
}

// raceWithDeadline runs fn bounded by timeout and returns its result,
// or the zero value when the deadline wins. The abandoned call may
// still finish in the background; its result is discarded.
func raceWithDeadline[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) T) T {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan T, 1)
	go func() {
		defer logging.Recover("control-loop")
		ch <- fn(cctx)
	}()

	var zero T
	select {
	case out := <-ch:
		return out
	case <-cctx.Done():
		return zero
	}
}
