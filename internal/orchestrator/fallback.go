package orchestrator

import (
	"fmt"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/plan"
)

// FallbackPlan is the deterministic single-step plan used whenever the
// planner fails, hangs, or produces nothing usable.
func FallbackPlan(query string) *plan.Plan {
	p := plan.NewPlan(query)
	p.Steps = []plan.Step{
		{
			ID:             "step-1",
			Description:    "Research and answer: " + query,
			AgentType:      agent.TypeResearch,
			RAGQuery:       query,
			ExpectedOutput: "A direct answer to the query",
		},
	}
	return p
}

// FallbackReview derives a verdict straight from the execution result
// when the reviewer is unavailable.
func FallbackReview(res *plan.ExecutionResult) plan.ReviewResult {
	if res == nil {
		return plan.ReviewResult{
			Satisfactory: false,
			Feedback:     "No execution result was produced",
		}
	}
	var failed []string
	for _, sr := range res.StepResults {
		if !sr.Success {
			failed = append(failed, sr.StepID)
		}
	}
	return plan.ReviewResult{
		Satisfactory: res.Success,
		Feedback: fmt.Sprintf("%d of %d steps completed successfully",
			res.CompletedSteps, res.CompletedSteps+res.FailedSteps),
		FailedSteps: failed,
	}
}
