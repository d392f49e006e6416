package graph

import (
	"context"
	"time"

	"github.com/Pricepro2006/crewd/internal/logging"
	"github.com/Pricepro2006/crewd/internal/plan"
)

// Archiver mirrors completed plans and step results into the graph.
// A nil-driver archiver is valid and drops everything silently, so
// callers never need to branch on whether archiving is configured.
type Archiver struct {
	writer GraphWriter
	log    *logging.Logger
}

// NewArchiver creates an archiver. writer may be nil.
func NewArchiver(writer GraphWriter) *Archiver {
	return &Archiver{
		writer: writer,
		log:    logging.New("graph"),
	}
}

// Enabled reports whether a backing driver is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.writer != nil
}

// ArchiveRun persists one executed plan with its step results. Failures
// are logged, never returned: archiving is best effort and must not
// affect the request outcome.
func (a *Archiver) ArchiveRun(ctx context.Context, p *plan.Plan, res *plan.ExecutionResult) {
	if !a.Enabled() || p == nil || res == nil {
		return
	}

	log := a.log.WithPlan(p.ID)

	err := a.writer.ExecuteWrite(ctx, `
		MERGE (pl:Plan {id: $id})
		SET pl.goal = $goal,
		    pl.status = $status,
		    pl.replanCount = $replanCount,
		    pl.success = $success,
		    pl.completedSteps = $completed,
		    pl.failedSteps = $failed,
		    pl.archivedAt = $archivedAt`,
		map[string]any{
			"id":          p.ID,
			"goal":        p.Goal,
			"status":      string(p.Status),
			"replanCount": p.ReplanCount,
			"success":     res.Success,
			"completed":   res.CompletedSteps,
			"failed":      res.FailedSteps,
			"archivedAt":  time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		log.Warn("archive_plan_failed", nil, err)
		return
	}

	for _, sr := range res.StepResults {
		step, _ := p.StepByID(sr.StepID)
		err := a.writer.ExecuteWrite(ctx, `
			MATCH (pl:Plan {id: $planId})
			MERGE (st:Step {id: $stepId, planId: $planId})
			SET st.description = $description,
			    st.agentType = $agentType,
			    st.success = $success,
			    st.error = $error,
			    st.skipped = $skipped
			MERGE (pl)-[:HAS_STEP]->(st)`,
			map[string]any{
				"planId":      p.ID,
				"stepId":      sr.StepID,
				"description": step.Description,
				"agentType":   step.AgentType,
				"success":     sr.Success,
				"error":       sr.Error,
				"skipped":     sr.Skipped(),
			})
		if err != nil {
			log.WithStep(sr.StepID).Warn("archive_step_failed", nil, err)
		}
	}

	log.Debug("plan_archived", map[string]interface{}{"steps": len(res.StepResults)})
}
