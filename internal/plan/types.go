// Package plan defines the plan orchestration data model.
// Plans are produced by an external planner, scheduled as a dependency
// graph, and executed step by step against pooled agents.
package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a plan.
type Status string

const (
	StatusCreated    Status = "created"
	StatusExecuting  Status = "executing"
	StatusReviewed   Status = "reviewed"
	StatusReplanning Status = "replanning"
	StatusDone       Status = "done"
)

// Step is one unit of work with a capability tag and dependency set.
// Steps are immutable once the plan is built; the scheduler only
// reorders references to them.
type Step struct {
	ID             string         `json:"id"`
	Description    string         `json:"description"`
	AgentType      string         `json:"agentType"`
	RequiresTool   bool           `json:"requiresTool"`
	ToolName       string         `json:"toolName,omitempty"`
	RAGQuery       string         `json:"ragQuery,omitempty"`
	ExpectedOutput string         `json:"expectedOutput,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
}

// Plan is an ordered set of steps produced for one user request.
// A replan replaces the plan wholesale; plans are never mutated in place.
type Plan struct {
	ID          string `json:"id"`
	Goal        string `json:"goal,omitempty"`
	Status      Status `json:"status,omitempty"`
	ReplanCount int    `json:"replanCount,omitempty"`
	Steps       []Step `json:"steps"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// NewPlan creates an empty plan for a goal.
func NewPlan(goal string) *Plan {
	return &Plan{
		ID:        "plan-" + uuid.NewString(),
		Goal:      goal,
		Status:    StatusCreated,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// StepByID returns the step with the given identifier, if present.
func (p *Plan) StepByID(id string) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Metadata keys used in StepResult.Metadata. The executor writes these;
// the control loop and reviewers read them.
const (
	MetaSkipped          = "skipped"
	MetaIsTimeout        = "isTimeout"
	MetaTimeoutMs        = "timeoutMs"
	MetaToolUsed         = "toolUsed"
	MetaErrorClass       = "errorClass"
	MetaContextRelevance = "contextRelevance"
	MetaDurationMs       = "durationMs"
)

// ErrorClassCritical marks a failure that halts the remaining steps.
const ErrorClassCritical = "critical"

// StepResult is the outcome of one considered step. Skipped steps get a
// synthetic failed result; steps never reached after an early halt get
// no result at all.
type StepResult struct {
	StepID   string         `json:"stepId"`
	Success  bool           `json:"success"`
	Output   string         `json:"output,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Skipped reports whether this result is the synthetic
// dependencies-not-satisfied failure.
func (r StepResult) Skipped() bool {
	v, _ := r.Metadata[MetaSkipped].(bool)
	return v
}

// IsTimeout reports whether the step failed by exceeding its deadline.
func (r StepResult) IsTimeout() bool {
	v, _ := r.Metadata[MetaIsTimeout].(bool)
	return v
}

// Critical reports whether the failure is classified as critical.
func (r StepResult) Critical() bool {
	v, _ := r.Metadata[MetaErrorClass].(string)
	return v == ErrorClassCritical
}

// ExecutionResult aggregates the step results of one execution attempt.
// Built fresh per attempt, never mutated after construction.
type ExecutionResult struct {
	PlanID         string       `json:"planId"`
	Success        bool         `json:"success"`
	StepResults    []StepResult `json:"stepResults"`
	Summary        string       `json:"summary"`
	CompletedSteps int          `json:"completedSteps"`
	FailedSteps    int          `json:"failedSteps"`
	FirstError     string       `json:"firstError,omitempty"`
}

// ReviewResult is the external reviewer's verdict on one execution.
type ReviewResult struct {
	Satisfactory bool     `json:"satisfactory"`
	Feedback     string   `json:"feedback,omitempty"`
	FailedSteps  []string `json:"failedSteps,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// Response is the caller-facing outcome of one orchestrated request.
type Response struct {
	Success  bool           `json:"success"`
	Summary  string         `json:"summary"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewStepID mints a unique step identifier.
func NewStepID(n int) string {
	return fmt.Sprintf("step-%d", n)
}
