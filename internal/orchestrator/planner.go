package orchestrator

import (
	"context"
	"strings"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/plan"
)

// HeuristicPlanner builds plans from keyword heuristics. It stands in
// wherever no model-backed planner is wired and honors the planner
// contract: it always returns a usable plan.
type HeuristicPlanner struct{}

var analysisHints = []string{"compare", "analyze", "analyse", "evaluate", "why", "difference"}

var codeHints = []string{"file", "files", "code", "source", "repository", "repo"}

// CreatePlan derives a research-first plan from the query. Analytic
// queries get an analysis step, code-shaped queries a glob search step,
// and everything ends with a writer step that depends on the rest.
func (HeuristicPlanner) CreatePlan(ctx context.Context, query string) *plan.Plan {
	p := plan.NewPlan(query)
	lower := strings.ToLower(query)

	n := 1
	addStep := func(s plan.Step) string {
		s.ID = plan.NewStepID(n)
		n++
		p.Steps = append(p.Steps, s)
		return s.ID
	}

	researchID := addStep(plan.Step{
		Description:    "Gather background for: " + query,
		AgentType:      agent.TypeResearch,
		RAGQuery:       query,
		ExpectedOutput: "Relevant source material",
	})
	priorIDs := []string{researchID}

	if containsAny(lower, codeHints) {
		id := addStep(plan.Step{
			Description:    "Locate workspace files relevant to: " + query,
			AgentType:      agent.TypeCode,
			RequiresTool:   true,
			ToolName:       "glob",
			Parameters:     map[string]any{"pattern": "**/*"},
			ExpectedOutput: "Matching file paths",
		})
		priorIDs = append(priorIDs, id)
	}

	if containsAny(lower, analysisHints) {
		id := addStep(plan.Step{
			Description:    "Analyze the gathered material for: " + query,
			AgentType:      agent.TypeAnalysis,
			Dependencies:   []string{researchID},
			ExpectedOutput: "Key findings",
		})
		priorIDs = append(priorIDs, id)
	}

	addStep(plan.Step{
		Description:    "Compose the final answer for: " + query,
		AgentType:      agent.TypeWriter,
		Dependencies:   priorIDs,
		ExpectedOutput: "A complete answer to the query",
	})

	return p
}

// Replan rebuilds the plan, annotating the steps the review flagged so
// the next attempt carries the failure context.
func (h HeuristicPlanner) Replan(ctx context.Context, query string, failed *plan.Plan, review plan.ReviewResult) *plan.Plan {
	if failed == nil || len(failed.Steps) == 0 {
		return h.CreatePlan(ctx, query)
	}

	flagged := make(map[string]bool, len(review.FailedSteps))
	for _, id := range review.FailedSteps {
		flagged[id] = true
	}

	next := plan.NewPlan(query)
	next.Steps = make([]plan.Step, len(failed.Steps))
	copy(next.Steps, failed.Steps)
	for i := range next.Steps {
		if flagged[next.Steps[i].ID] && review.Feedback != "" {
			next.Steps[i].Description += " (previous attempt: " + review.Feedback + ")"
		}
	}
	return next
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// ResultReviewer derives the verdict purely from the execution outcome.
// It stands in wherever no model-backed reviewer is wired.
type ResultReviewer struct{}

// Review is satisfied exactly when every produced step result succeeded.
func (ResultReviewer) Review(ctx context.Context, p *plan.Plan, res *plan.ExecutionResult) plan.ReviewResult {
	review := FallbackReview(res)
	if !review.Satisfactory && len(review.FailedSteps) > 0 {
		review.Suggestions = []string{"Retry the failed steps with adjusted descriptions"}
	}
	return review
}
