package plan

import (
	"fmt"
	"strings"
)

// BuildExecutionResult aggregates step results into an ExecutionResult.
// Success is true iff every produced step result succeeded. The summary
// is pure text assembly and can be recomputed from the results at any time.
func BuildExecutionResult(planID string, results []StepResult) *ExecutionResult {
	res := &ExecutionResult{
		PlanID:      planID,
		Success:     true,
		StepResults: results,
	}

	for _, r := range results {
		if r.Success {
			res.CompletedSteps++
			continue
		}
		res.Success = false
		res.FailedSteps++
		if res.FirstError == "" {
			res.FirstError = r.Error
		}
	}

	res.Summary = BuildSummary(results)
	return res
}

// BuildSummary concatenates successful outputs under a Completed heading
// and failed step identifiers with their errors under a Failed heading.
func BuildSummary(results []StepResult) string {
	var completed, failed []string

	for _, r := range results {
		if r.Success {
			if r.Output != "" {
				completed = append(completed, r.Output)
			}
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", r.StepID, r.Error))
	}

	var b strings.Builder
	if len(completed) > 0 {
		b.WriteString("Completed:\n")
		for _, out := range completed {
			b.WriteString(out)
			b.WriteString("\n")
		}
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Failed Steps:\n")
		for _, f := range failed {
			b.WriteString(f)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
