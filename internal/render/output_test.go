package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/graph"
	"github.com/Pricepro2006/crewd/internal/history"
	"github.com/Pricepro2006/crewd/internal/plan"
)

func TestResponseFormatting(t *testing.T) {
	r := New(false)

	out := r.Response(&plan.Response{
		Success: true,
		Summary: "Completed 3 steps",
	})
	assert.Contains(t, out, "success=true")
	assert.Contains(t, out, "Completed 3 steps")

	assert.Equal(t, "No response", r.Response(nil))
}

func TestPoolStatusFormatting(t *testing.T) {
	r := New(false)

	out := r.PoolStatus(map[string]agent.PoolStat{
		"research": {Idle: 1, Active: 2},
		"writer":   {Idle: 0, Active: 0},
	}, []agent.ActiveAgent{
		{Key: "01ARZ", Tag: "research", AcquiredAt: time.Now()},
	})

	assert.Contains(t, out, "research idle=1 active=2")
	assert.Contains(t, out, "writer idle=0 active=0")
	assert.Contains(t, out, "01ARZ")

	empty := r.PoolStatus(nil, nil)
	assert.Contains(t, empty, "No capabilities registered")
}

func TestRunsFormatting(t *testing.T) {
	r := New(false)

	out := r.Runs([]history.Run{{
		ID:        "run-1",
		Query:     "what changed",
		Success:   false,
		Completed: 1,
		Failed:    2,
		Replans:   1,
		CreatedAt: time.Now(),
	}})
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "what changed")
	assert.Contains(t, out, "replans=1")

	assert.Equal(t, "No runs recorded", r.Runs(nil))
}

func TestArchivedPlansFormatting(t *testing.T) {
	r := New(false)

	out := r.ArchivedPlans([]graph.ArchivedPlan{
		{
			ID:             "plan-a",
			Goal:           "summarize the changelog",
			Success:        true,
			CompletedSteps: 3,
			ArchivedAt:     "2026-08-31T10:00:00Z",
		},
		{ID: "plan-b", Goal: "broken run", FailedSteps: 2, ReplanCount: 1},
	}, graph.ArchiveStats{Plans: 2, Successful: 1, AvgReplans: 0.5})

	assert.Contains(t, out, "ok=true plan-a summarize the changelog (3/3, replans=0)")
	assert.Contains(t, out, "ok=false plan-b broken run (0/2, replans=1)")
	assert.Contains(t, out, "2 plans archived, 1 successful, avg replans 0.50")

	assert.Equal(t, "No archived plans", r.ArchivedPlans(nil, graph.ArchiveStats{}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500ms", FormatDuration(500*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
}
