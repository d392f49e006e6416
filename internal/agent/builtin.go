package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pricepro2006/crewd/internal/retrieval"
)

// Built-in capability tags.
const (
	TypeResearch = "research"
	TypeCode     = "code"
	TypeWriter   = "writer"
	TypeAnalysis = "analysis"
)

// builtinAgent is the shared implementation behind the built-in
// capability tags. Each tag gets its own toolbox and output shaping.
type builtinAgent struct {
	Toolbox
	tag         string
	initialized bool
	executions  int
}

func (a *builtinAgent) Type() string { return a.tag }

func (a *builtinAgent) Initialize(ctx context.Context) error {
	a.initialized = true
	return nil
}

func (a *builtinAgent) Execute(ctx context.Context, task string, docs []retrieval.Document) (*Result, error) {
	if !a.initialized {
		return nil, fmt.Errorf("agent %s not initialized", a.tag)
	}
	a.executions++

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", a.tag, task))
	if len(docs) > 0 {
		b.WriteString(fmt.Sprintf(" (using %d context documents)", len(docs)))
	}

	return &Result{
		Success: true,
		Output:  b.String(),
		Metadata: map[string]any{
			"agentType":  a.tag,
			"executions": a.executions,
		},
	}, nil
}

// DefaultFactories returns factories for the built-in capability tags.
// workDir roots the code agent's file tools.
func DefaultFactories(workDir string) map[string]Factory {
	return map[string]Factory{
		TypeResearch: func() (Agent, error) {
			return &builtinAgent{
				tag:     TypeResearch,
				Toolbox: NewToolbox(NewWebFetch(), NewSummarize()),
			}, nil
		},
		TypeCode: func() (Agent, error) {
			return &builtinAgent{
				tag:     TypeCode,
				Toolbox: NewToolbox(NewGlobFiles(workDir)),
			}, nil
		},
		TypeWriter: func() (Agent, error) {
			return &builtinAgent{
				tag:     TypeWriter,
				Toolbox: NewToolbox(NewSummarize()),
			}, nil
		},
		TypeAnalysis: func() (Agent, error) {
			return &builtinAgent{
				tag:     TypeAnalysis,
				Toolbox: NewToolbox(NewSummarize()),
			}, nil
		},
	}
}
