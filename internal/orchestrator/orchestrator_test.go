package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/plan"
)

type fakePlanner struct {
	creates int
	replans int
	plan    *plan.Plan
	hang    bool
}

func (f *fakePlanner) CreatePlan(ctx context.Context, query string) *plan.Plan {
	f.creates++
	if f.hang {
		<-ctx.Done()
		return nil
	}
	if f.plan != nil {
		return f.plan
	}
	return twoStepPlan(query)
}

func (f *fakePlanner) Replan(ctx context.Context, query string, failed *plan.Plan, review plan.ReviewResult) *plan.Plan {
	f.replans++
	return twoStepPlan(query)
}

type fakeReviewer struct {
	calls    int
	verdicts []plan.ReviewResult
}

func (f *fakeReviewer) Review(ctx context.Context, p *plan.Plan, res *plan.ExecutionResult) plan.ReviewResult {
	i := f.calls
	f.calls++
	if i >= len(f.verdicts) {
		i = len(f.verdicts) - 1
	}
	return f.verdicts[i]
}

type fakeExecutor struct {
	executions int
	hang       bool
	lastPlan   *plan.Plan
}

func (f *fakeExecutor) Execute(ctx context.Context, p *plan.Plan) *plan.ExecutionResult {
	f.executions++
	f.lastPlan = p
	if f.hang {
		<-ctx.Done()
		return nil
	}
	results := make([]plan.StepResult, 0, len(p.Steps))
	for _, s := range p.Steps {
		results = append(results, plan.StepResult{StepID: s.ID, Success: true, Output: "done"})
	}
	return plan.BuildExecutionResult(p.ID, results)
}

func twoStepPlan(goal string) *plan.Plan {
	p := plan.NewPlan(goal)
	p.Steps = []plan.Step{
		{ID: "step-1", Description: "gather", AgentType: agent.TypeResearch},
		{ID: "step-2", Description: "write", AgentType: agent.TypeWriter, Dependencies: []string{"step-1"}},
	}
	return p
}

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		MaxTotalTime: 5 * time.Second,
		Timeouts: Timeouts{
			PlanCreation: 100 * time.Millisecond,
			Review:       100 * time.Millisecond,
			Execution:    200 * time.Millisecond,
		},
	}
}

func TestProcessSatisfactoryFirstAttempt(t *testing.T) {
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{{Satisfactory: true}}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, fastConfig())

	resp := o.Process(context.Background(), "summarize the release notes")

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, planner.creates)
	assert.Equal(t, 0, planner.replans)
	assert.Equal(t, 1, executor.executions)
	assert.Equal(t, 0, resp.Metadata["replans"])
	assert.Equal(t, 2, resp.Metadata["totalSteps"])
}

func TestProcessReplanBound(t *testing.T) {
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{{
		Satisfactory: false,
		Feedback:     "step-2 output incomplete",
		FailedSteps:  []string{"step-2"},
	}}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, fastConfig())

	resp := o.Process(context.Background(), "compare the two proposals")

	require.NotNil(t, resp)
	assert.Equal(t, 3, planner.replans)
	assert.Equal(t, 4, executor.executions)
	assert.Equal(t, 4, reviewer.calls)
	assert.Equal(t, 3, resp.Metadata["replans"])
}

func TestProcessReplanIncrementsReplanCount(t *testing.T) {
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{
		{Satisfactory: false, FailedSteps: []string{"step-1"}},
		{Satisfactory: true},
	}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, fastConfig())

	o.Process(context.Background(), "draft the announcement")

	require.NotNil(t, executor.lastPlan)
	assert.Equal(t, 1, executor.lastPlan.ReplanCount)
}

func TestProcessInfrastructureLimitationStopsReplanning(t *testing.T) {
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{{
		Satisfactory: false,
		Feedback:     "Infrastructure Limitation: the search index is offline",
	}}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, fastConfig())

	resp := o.Process(context.Background(), "find recent incidents")

	require.NotNil(t, resp)
	assert.Equal(t, 0, planner.replans)
	assert.Equal(t, 1, executor.executions)
}

func TestProcessFailedStepsDefeatInfrastructureClassification(t *testing.T) {
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{
		{
			Satisfactory: false,
			Feedback:     "infrastructure limitation plus a real step failure",
			FailedSteps:  []string{"step-1"},
		},
		{Satisfactory: true},
	}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, fastConfig())

	o.Process(context.Background(), "audit the configuration")

	assert.Equal(t, 1, planner.replans)
	assert.Equal(t, 2, executor.executions)
}

func TestProcessTimeBudgetExhausted(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxTotalTime = 1 * time.Nanosecond
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{{
		Satisfactory: false,
		FailedSteps:  []string{"step-1"},
	}}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, cfg)

	resp := o.Process(context.Background(), "enumerate everything")

	require.NotNil(t, resp)
	assert.Equal(t, 0, planner.replans)
	assert.Equal(t, 1, executor.executions)
}

func TestProcessHungExecutorDegradesGracefully(t *testing.T) {
	planner := &fakePlanner{}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{{Satisfactory: true}}}
	executor := &fakeExecutor{hang: true}
	o := New(planner, reviewer, executor, fastConfig())

	resp := o.Process(context.Background(), "stalling query")

	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Summary, "took too long")
	assert.Equal(t, true, resp.Metadata["timedOut"])
}

func TestProcessHungPlannerFallsBack(t *testing.T) {
	planner := &fakePlanner{hang: true}
	reviewer := &fakeReviewer{verdicts: []plan.ReviewResult{{Satisfactory: true}}}
	executor := &fakeExecutor{}
	o := New(planner, reviewer, executor, fastConfig())

	resp := o.Process(context.Background(), "what is the capital of France")

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	require.NotNil(t, executor.lastPlan)
	require.Len(t, executor.lastPlan.Steps, 1)
	assert.Equal(t, agent.TypeResearch, executor.lastPlan.Steps[0].AgentType)
	assert.Contains(t, executor.lastPlan.Steps[0].Description, "capital of France")
}

func TestFallbackPlanShape(t *testing.T) {
	p := FallbackPlan("look up the weather")

	require.Len(t, p.Steps, 1)
	assert.Equal(t, "step-1", p.Steps[0].ID)
	assert.Equal(t, agent.TypeResearch, p.Steps[0].AgentType)
	assert.Equal(t, "look up the weather", p.Steps[0].RAGQuery)
}

func TestFallbackReview(t *testing.T) {
	res := plan.BuildExecutionResult("plan-x", []plan.StepResult{
		{StepID: "step-1", Success: true},
		{StepID: "step-2", Success: false, Error: "boom"},
	})

	review := FallbackReview(res)

	assert.False(t, review.Satisfactory)
	assert.Equal(t, []string{"step-2"}, review.FailedSteps)
	assert.Contains(t, review.Feedback, "1 of 2")

	nilReview := FallbackReview(nil)
	assert.False(t, nilReview.Satisfactory)
}
