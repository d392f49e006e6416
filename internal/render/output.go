// Package render formats crewd results for the terminal.
package render

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Pricepro2006/crewd/internal/agent"
	"github.com/Pricepro2006/crewd/internal/config"
	"github.com/Pricepro2006/crewd/internal/graph"
	"github.com/Pricepro2006/crewd/internal/history"
	"github.com/Pricepro2006/crewd/internal/plan"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a renderer. pretty enables colors and rules.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Pretty reports whether stdout is an interactive terminal and color
// output is not suppressed.
func Pretty() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && !config.Env().NoColor
}

// Response formats the outcome of one orchestrated request.
func (r *Renderer) Response(resp *plan.Response) string {
	if resp == nil {
		return "No response"
	}

	var sb strings.Builder

	if r.pretty {
		if resp.Success {
			sb.WriteString(color.GreenString("✓ Completed\n"))
		} else {
			sb.WriteString(color.RedString("✗ Failed\n"))
		}
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		sb.WriteString(resp.Summary + "\n")
		if replans, ok := resp.Metadata["replans"].(int); ok && replans > 0 {
			fmt.Fprintf(&sb, "\n%s\n", color.HiBlackString(fmt.Sprintf("replans: %d", replans)))
		}
	} else {
		fmt.Fprintf(&sb, "success=%v\n%s\n", resp.Success, resp.Summary)
	}

	return sb.String()
}

// PoolStatus formats the agent pool snapshot.
func (r *Renderer) PoolStatus(stats map[string]agent.PoolStat, active []agent.ActiveAgent) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Agent Pool\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
	}

	tags := make([]string, 0, len(stats))
	for tag := range stats {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	if len(tags) == 0 {
		sb.WriteString("No capabilities registered\n")
	}
	for _, tag := range tags {
		st := stats[tag]
		if r.pretty {
			fmt.Fprintf(&sb, "  %-10s idle=%d active=%d\n", tag, st.Idle, st.Active)
		} else {
			fmt.Fprintf(&sb, "%s idle=%d active=%d\n", tag, st.Idle, st.Active)
		}
	}

	if len(active) > 0 {
		if r.pretty {
			sb.WriteString(color.CyanString("\nActive Agents\n"))
		} else {
			sb.WriteString("active:\n")
		}
		for _, a := range active {
			age := FormatDuration(time.Since(a.AcquiredAt))
			if r.pretty {
				fmt.Fprintf(&sb, "  %s %s (%s)\n", color.HiBlackString(a.Key), a.Tag, age)
			} else {
				fmt.Fprintf(&sb, "%s %s %s\n", a.Key, a.Tag, age)
			}
		}
	}

	return sb.String()
}

// Runs formats a run-history listing, newest first.
func (r *Renderer) Runs(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Run History\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, run := range runs {
		status := color.GreenString("✓")
		if !run.Success {
			status = color.RedString("✗")
		}
		timeStr := run.CreatedAt.Local().Format("Jan 02 15:04")

		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s %s\n", status, color.HiBlackString(timeStr),
				run.ID, truncate(run.Query, 50))
			fmt.Fprintf(&sb, "    steps: %d ok, %d failed, %d replans\n",
				run.Completed, run.Failed, run.Replans)
		} else {
			fmt.Fprintf(&sb, "[%s] ok=%v %s %s (%d/%d, replans=%d)\n", timeStr,
				run.Success, run.ID, run.Query, run.Completed,
				run.Completed+run.Failed, run.Replans)
		}
	}

	return sb.String()
}

// Run formats one run with its step results.
func (r *Renderer) Run(run *history.Run) string {
	if run == nil {
		return "Run not found"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString(run.ID + "\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	} else {
		sb.WriteString(run.ID + "\n")
	}
	fmt.Fprintf(&sb, "Query: %s\n", run.Query)
	fmt.Fprintf(&sb, "Plan:  %s\n\n", run.PlanID)

	for _, sr := range run.StepResults {
		status := color.GreenString("✓")
		if !sr.Success {
			status = color.RedString("✗")
		}
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s\n", status, sr.StepID)
		} else {
			fmt.Fprintf(&sb, "ok=%v %s\n", sr.Success, sr.StepID)
		}
		if sr.Error != "" {
			fmt.Fprintf(&sb, "    %s\n", sr.Error)
		}
	}

	sb.WriteString("\n" + run.Summary + "\n")
	return sb.String()
}

// ArchivedPlans formats graph-archived plan summaries with the
// aggregate stats line.
func (r *Renderer) ArchivedPlans(plans []graph.ArchivedPlan, stats graph.ArchiveStats) string {
	if len(plans) == 0 {
		return "No archived plans"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Archived Plans\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, ap := range plans {
		status := color.GreenString("✓")
		if !ap.Success {
			status = color.RedString("✗")
		}
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s %s\n", status, color.HiBlackString(ap.ArchivedAt),
				ap.ID, truncate(ap.Goal, 50))
			fmt.Fprintf(&sb, "    steps: %d ok, %d failed, %d replans\n",
				ap.CompletedSteps, ap.FailedSteps, ap.ReplanCount)
		} else {
			fmt.Fprintf(&sb, "[%s] ok=%v %s %s (%d/%d, replans=%d)\n", ap.ArchivedAt,
				ap.Success, ap.ID, ap.Goal, ap.CompletedSteps,
				ap.CompletedSteps+ap.FailedSteps, ap.ReplanCount)
		}
	}

	if stats.Plans > 0 {
		line := fmt.Sprintf("%d plans archived, %d successful, avg replans %.2f",
			stats.Plans, stats.Successful, stats.AvgReplans)
		if r.pretty {
			sb.WriteString("\n" + color.HiBlackString(line) + "\n")
		} else {
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
