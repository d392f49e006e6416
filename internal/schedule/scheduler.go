// Package schedule orders plan steps with Kahn's algorithm.
package schedule

import (
	"github.com/Pricepro2006/crewd/internal/logging"
	"github.com/Pricepro2006/crewd/internal/plan"
)

var log = logging.New("scheduler")

// Order produces a dependency-respecting execution order for the plan's
// steps using in-degree counting and a FIFO ready queue. Steps that become
// ready at the same instant keep their original declaration order.
//
// A cycle, or a dependency on a step that does not exist, leaves the
// ordering shorter than the input. The scheduler does not fail in that
// case: it logs a warning and returns the steps in declared order,
// sacrificing the dependency guarantee rather than aborting the plan.
func Order(p *plan.Plan) []plan.Step {
	steps := p.Steps
	if len(steps) <= 1 {
		return steps
	}

	known := make(map[string]int, len(steps))
	for i, s := range steps {
		known[s.ID] = i
	}

	// Dangling dependencies count toward in-degree and are never
	// decremented, so the step is treated as never-satisfiable.
	inDeg := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		inDeg[i] = len(s.Dependencies)
		for _, dep := range s.Dependencies {
			if j, ok := known[dep]; ok {
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	var queue []int
	for i := range steps {
		if inDeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	ordered := make([]plan.Step, 0, len(steps))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		ordered = append(ordered, steps[i])

		for _, j := range dependents[i] {
			inDeg[j]--
			if inDeg[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(ordered) != len(steps) {
		log.WithPlan(p.ID).Warn("dependency_cycle_fallback", map[string]interface{}{
			"ordered": len(ordered),
			"total":   len(steps),
		}, nil)
		return steps
	}

	return ordered
}
