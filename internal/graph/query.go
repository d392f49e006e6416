package graph

import (
	"context"
	"fmt"
)

// ArchivedPlan is a plan summary read back from the graph.
type ArchivedPlan struct {
	ID             string
	Goal           string
	Status         string
	ReplanCount    int
	Success        bool
	CompletedSteps int
	FailedSteps    int
	ArchivedAt     string
}

// ArchiveStats aggregates the archived corpus.
type ArchiveStats struct {
	Plans      int
	Successful int
	AvgReplans float64
}

// RecentPlans reads the most recently archived plans, newest first.
func RecentPlans(ctx context.Context, reader GraphReader, limit int) ([]ArchivedPlan, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := reader.Execute(ctx, `
		MATCH (pl:Plan)
		RETURN pl.id AS id, pl.goal AS goal, pl.status AS status,
		       pl.replanCount AS replanCount, pl.success AS success,
		       pl.completedSteps AS completed, pl.failedSteps AS failed,
		       pl.archivedAt AS archivedAt
		ORDER BY pl.archivedAt DESC
		LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("query archived plans: %w", err)
	}

	plans := make([]ArchivedPlan, 0, len(rows))
	for _, r := range rows {
		plans = append(plans, ArchivedPlan{
			ID:             GetString(r, "id"),
			Goal:           GetString(r, "goal"),
			Status:         GetString(r, "status"),
			ReplanCount:    GetInt(r, "replanCount"),
			Success:        GetBool(r, "success"),
			CompletedSteps: GetInt(r, "completed"),
			FailedSteps:    GetInt(r, "failed"),
			ArchivedAt:     GetString(r, "archivedAt"),
		})
	}
	return plans, nil
}

// Stats aggregates all archived plans. An empty graph yields zeros.
func Stats(ctx context.Context, reader GraphReader) (ArchiveStats, error) {
	rows, err := reader.Execute(ctx, `
		MATCH (pl:Plan)
		RETURN count(pl) AS plans,
		       sum(CASE WHEN pl.success THEN 1 ELSE 0 END) AS successful,
		       avg(toFloat(pl.replanCount)) AS avgReplans`, nil)
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("query archive stats: %w", err)
	}
	if len(rows) == 0 {
		return ArchiveStats{}, nil
	}

	r := rows[0]
	return ArchiveStats{
		Plans:      GetInt(r, "plans"),
		Successful: GetInt(r, "successful"),
		AvgReplans: GetFloat(r, "avgReplans"),
	}, nil
}
