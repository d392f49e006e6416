package schedule

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pricepro2006/crewd/internal/logging"
	"github.com/Pricepro2006/crewd/internal/plan"
)

func planOf(steps ...plan.Step) *plan.Plan {
	return &plan.Plan{ID: "plan-test", Steps: steps}
}

func ids(steps []plan.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func TestOrderRespectsDependencies(t *testing.T) {
	p := planOf(
		plan.Step{ID: "D", Dependencies: []string{"B", "C"}},
		plan.Step{ID: "B", Dependencies: []string{"A"}},
		plan.Step{ID: "C", Dependencies: []string{"A"}},
		plan.Step{ID: "A"},
	)

	ordered := Order(p)
	require.Len(t, ordered, 4)

	pos := make(map[string]int)
	for i, s := range ordered {
		pos[s.ID] = i
	}

	// Every dependency appears before its dependent.
	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			assert.Less(t, pos[dep], pos[s.ID], "%s must come before %s", dep, s.ID)
		}
	}
	assert.Equal(t, "A", ordered[0].ID)
	assert.Equal(t, "D", ordered[3].ID)
}

func TestOrderStableTieBreak(t *testing.T) {
	// All steps are ready at the same instant; declaration order wins.
	p := planOf(
		plan.Step{ID: "first"},
		plan.Step{ID: "second"},
		plan.Step{ID: "third"},
	)

	assert.Equal(t, []string{"first", "second", "third"}, ids(Order(p)))
}

func TestOrderTieBreakAmongNewlyReady(t *testing.T) {
	p := planOf(
		plan.Step{ID: "A"},
		plan.Step{ID: "B", Dependencies: []string{"A"}},
		plan.Step{ID: "C", Dependencies: []string{"A"}},
		plan.Step{ID: "D", Dependencies: []string{"B", "C"}},
	)

	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(Order(p)))
}

func TestOrderCycleFallsBackToDeclaredOrder(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stderr)

	p := planOf(
		plan.Step{ID: "A", Dependencies: []string{"B"}},
		plan.Step{ID: "B", Dependencies: []string{"A"}},
	)

	ordered := Order(p)

	assert.Equal(t, []string{"A", "B"}, ids(ordered))
	assert.True(t, strings.Contains(buf.String(), "dependency_cycle_fallback"),
		"expected a warning, got: %s", buf.String())
}

func TestOrderDanglingDependencyFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stderr)

	p := planOf(
		plan.Step{ID: "A"},
		plan.Step{ID: "B", Dependencies: []string{"ghost"}},
	)

	// B references a missing step, so the full order cannot be produced.
	assert.Equal(t, []string{"A", "B"}, ids(Order(p)))
	assert.Contains(t, buf.String(), "dependency_cycle_fallback")
}

func TestOrderSingleStep(t *testing.T) {
	p := planOf(plan.Step{ID: "only"})
	assert.Equal(t, []string{"only"}, ids(Order(p)))
}

func TestOrderEmptyPlan(t *testing.T) {
	assert.Empty(t, Order(planOf()))
}
