// Package gate implements the advisory checks the state machine
// consults before a stage transition. A failed non-overridable gate
// blocks the transition and is reported, never silently retried.
package gate

import (
	"fmt"
	"strings"

	"github.com/cairnhq/cairn/internal/resolve"
	"github.com/cairnhq/cairn/pkg/models"
)

// Built-in gate names.
const (
	GateDependencies = "dependencies_satisfied"
	GateBudget       = "budget_remaining"
	GateTests        = "tests_pass"
	GateSecurity     = "security_findings_clear"
)

// Gate is a named pass/fail predicate over a state snapshot.
type Gate interface {
	Name() string
	// Overridable reports whether a manual override may waive a failure.
	Overridable() bool
	Check(snap Snapshot) models.GateResult
}

// Snapshot is the slice of run state gates evaluate. Fields a gate does
// not consult stay zero.
type Snapshot struct {
	// PlanSlug is the node about to transition.
	PlanSlug string
	// Edges are the dependency edges in scope for the node.
	Edges []models.DependencyEdge
	// Status resolves sibling slugs to their current status.
	Status resolve.StatusLookup
	// BudgetStatus is the node's allocation status, empty when no
	// budget applies.
	BudgetStatus models.BudgetStatus
	// Tests is the latest test outcome, nil when tests have not run.
	Tests *models.TestOutcome
	// SecurityFindings lists open blocking findings.
	SecurityFindings []string
}

// DependencyGate fails while the node's declared dependencies are not
// completed. Ordering constraints are advisory, so a manual override is
// permitted.
type DependencyGate struct{}

// Name returns the gate name.
func (DependencyGate) Name() string { return GateDependencies }

// Overridable reports that dependency failures can be waived.
func (DependencyGate) Overridable() bool { return true }

// Check evaluates dependency satisfaction for the snapshot's node.
func (g DependencyGate) Check(snap Snapshot) models.GateResult {
	result := models.GateResult{
		GateType:    g.Name(),
		Overridable: g.Overridable(),
	}

	if snap.Status == nil {
		result.Passed = true
		result.Details = "no status lookup wired, nothing to check"
		return result
	}

	check := resolve.CheckPlanDependencies(snap.PlanSlug, snap.Edges, snap.Status)
	result.Passed = check.Satisfied
	if !check.Satisfied {
		result.Details = "waiting on: " + strings.Join(check.Missing, ", ")
	}
	return result
}

// BudgetGate fails once the node's allocation is exhausted or exceeded.
// Resource limits cannot be waived by hand.
type BudgetGate struct{}

// Name returns the gate name.
func (BudgetGate) Name() string { return GateBudget }

// Overridable reports that budget failures cannot be waived.
func (BudgetGate) Overridable() bool { return false }

// Check evaluates remaining budget headroom.
func (g BudgetGate) Check(snap Snapshot) models.GateResult {
	result := models.GateResult{
		GateType:    g.Name(),
		Overridable: g.Overridable(),
	}

	switch snap.BudgetStatus {
	case models.BudgetExhausted, models.BudgetExceeded:
		result.Passed = false
		result.Details = fmt.Sprintf("budget is %s", snap.BudgetStatus)
	case models.BudgetLow:
		result.Passed = true
		result.Details = "budget is low"
	default:
		result.Passed = true
	}
	return result
}

// TestsGate fails when the latest test outcome has failures, or when
// tests have not run at all.
type TestsGate struct{}

// Name returns the gate name.
func (TestsGate) Name() string { return GateTests }

// Overridable reports that test failures can be waived.
func (TestsGate) Overridable() bool { return true }

// Check evaluates the recorded test outcome.
func (g TestsGate) Check(snap Snapshot) models.GateResult {
	result := models.GateResult{
		GateType:    g.Name(),
		Overridable: g.Overridable(),
	}

	if snap.Tests == nil {
		result.Passed = false
		result.Details = "tests have not run"
		return result
	}
	if snap.Tests.Failed > 0 {
		result.Passed = false
		result.Details = fmt.Sprintf("%d of %d tests failed",
			snap.Tests.Failed, snap.Tests.Passed+snap.Tests.Failed+snap.Tests.Skipped)
		if len(snap.Tests.Failures) > 0 {
			result.Details += ": " + strings.Join(snap.Tests.Failures, "; ")
		}
		return result
	}

	result.Passed = true
	result.Details = fmt.Sprintf("%d tests passed", snap.Tests.Passed)
	return result
}

// SecurityGate fails while blocking security findings remain open. A
// finding here halts the run; there is no manual waiver.
type SecurityGate struct{}

// Name returns the gate name.
func (SecurityGate) Name() string { return GateSecurity }

// Overridable reports that security failures cannot be waived.
func (SecurityGate) Overridable() bool { return false }

// Check evaluates open security findings.
func (g SecurityGate) Check(snap Snapshot) models.GateResult {
	result := models.GateResult{
		GateType:    g.Name(),
		Overridable: g.Overridable(),
	}

	if len(snap.SecurityFindings) > 0 {
		result.Passed = false
		result.Details = strings.Join(snap.SecurityFindings, "; ")
		return result
	}
	result.Passed = true
	return result
}

// Func adapts a plain predicate into a Gate for callers registering
// custom checks.
type Func struct {
	// GateName names the gate in results.
	GateName string
	// CanOverride permits manual waiver of a failure.
	CanOverride bool
	// CheckFunc returns pass/fail and a detail line.
	CheckFunc func(Snapshot) (bool, string)
}

// Name returns the gate name.
func (f Func) Name() string { return f.GateName }

// Overridable reports whether failures can be waived.
func (f Func) Overridable() bool { return f.CanOverride }

// Check runs the wrapped predicate.
func (f Func) Check(snap Snapshot) models.GateResult {
	passed, details := f.CheckFunc(snap)
	return models.GateResult{
		GateType:    f.GateName,
		Passed:      passed,
		Details:     details,
		Overridable: f.CanOverride,
	}
}
