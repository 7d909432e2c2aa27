package gate

import (
	"sync"

	"github.com/cairnhq/cairn/pkg/models"
)

// Engine holds the gate set consulted at each stage boundary. The
// default wiring gates security on open findings, execution on
// dependencies and budget, and validation on tests; every other stage
// starts unguarded.
type Engine struct {
	mu    sync.RWMutex
	gates map[models.Stage][]Gate
}

// NewEngine creates an Engine with the default per-stage gate sets.
func NewEngine() *Engine {
	return &Engine{
		gates: map[models.Stage][]Gate{
			models.StageSecurity:   {SecurityGate{}},
			models.StageExecution:  {DependencyGate{}, BudgetGate{}},
			models.StageValidation: {TestsGate{}},
		},
	}
}

// Register appends a gate to a stage's set.
func (e *Engine) Register(stage models.Stage, g Gate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gates[stage] = append(e.gates[stage], g)
}

// SetGates replaces a stage's gate set.
func (e *Engine) SetGates(stage models.Stage, gates ...Gate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gates[stage] = gates
}

// Evaluation is the outcome of checking one stage boundary.
type Evaluation struct {
	// Stage is the boundary that was checked.
	Stage models.Stage
	// Results holds every gate's result in registration order.
	Results []models.GateResult
	// Blockers names the failed gates still blocking after overrides.
	Blockers []string
}

// Passed reports whether the transition may proceed.
func (ev Evaluation) Passed() bool {
	return len(ev.Blockers) == 0
}

// Evaluate runs the gates registered for a stage. A failed gate blocks
// unless it is overridable and named in overridden; a non-overridable
// failure always blocks.
func (e *Engine) Evaluate(stage models.Stage, snap Snapshot, overridden ...string) Evaluation {
	e.mu.RLock()
	gates := append([]Gate(nil), e.gates[stage]...)
	e.mu.RUnlock()

	waived := make(map[string]bool, len(overridden))
	for _, name := range overridden {
		waived[name] = true
	}

	ev := Evaluation{Stage: stage}
	for _, g := range gates {
		result := g.Check(snap)
		ev.Results = append(ev.Results, result)
		if result.Passed {
			continue
		}
		if result.Overridable && waived[result.GateType] {
			continue
		}
		ev.Blockers = append(ev.Blockers, result.GateType)
	}
	return ev
}
