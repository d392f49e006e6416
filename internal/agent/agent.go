// Package agent defines the worker-agent contract and the capability
// -tagged pool registry that owns agent lifecycle.
package agent

import (
	"context"

	"github.com/Pricepro2006/crewd/internal/retrieval"
)

// Result holds the output of one agent or tool execution.
type Result struct {
	Success  bool
	Output   string
	Data     map[string]any
	Error    string
	Metadata map[string]any
}

// ToolInput carries everything a tool needs for one invocation.
type ToolInput struct {
	Task       string
	Context    []retrieval.Document
	Parameters map[string]any
}

// Tool is a named capability an agent can expose.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input ToolInput) (*Result, error)
}

// Agent is a stateful, capability-tagged worker. Instances are owned by
// the pool registry while idle; ownership transfers to the caller while
// active.
type Agent interface {
	// Type returns the capability tag this agent serves.
	Type() string

	// Initialize prepares the agent for use. Called once before the
	// first execution.
	Initialize(ctx context.Context) error

	// Execute runs a free-form task with advisory context documents.
	Execute(ctx context.Context, task string, docs []retrieval.Document) (*Result, error)

	// GetTool returns a named tool, if this agent exposes it.
	GetTool(name string) (Tool, bool)
}

// Factory constructs an uninitialized agent instance.
type Factory func() (Agent, error)

// ToolError is a sentinel error type for tool lookup and dispatch.
type ToolError string

func (e ToolError) Error() string { return string(e) }

const (
	// ErrToolNotFound is returned when a step names a tool the agent
	// does not expose.
	ErrToolNotFound ToolError = "Tool not found"
)

// Toolbox is a reusable named-tool collection for agent implementations.
type Toolbox struct {
	tools map[string]Tool
}

// NewToolbox creates a toolbox holding the given tools.
func NewToolbox(tools ...Tool) Toolbox {
	tb := Toolbox{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		tb.tools[t.Name()] = t
	}
	return tb
}

// GetTool returns a tool by name.
func (tb Toolbox) GetTool(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// ToolNames lists the tool names in the box.
func (tb Toolbox) ToolNames() []string {
	names := make([]string, 0, len(tb.tools))
	for name := range tb.tools {
		names = append(names, name)
	}
	return names
}
