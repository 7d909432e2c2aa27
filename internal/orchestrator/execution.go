package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cairnhq/cairn/internal/gate"
	"github.com/cairnhq/cairn/internal/progress"
	"github.com/cairnhq/cairn/internal/resolve"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/pkg/models"
)

// runExecution walks the ordered plans and spawns an agent per pending
// task. Progress is rolled up and persisted after every plan so a crash
// or pause loses at most the plan in flight.
func (o *Orchestrator) runExecution(ctx context.Context) models.StageResult {
	result := models.StageResult{Stage: models.StageExecution}
	if o.executor == nil {
		result.Skipped = true
		result.Detail = "no agent executor configured"
		return result
	}

	executed := 0
	for o.cursor < len(o.order) {
		if err := o.pause.WaitIfPaused(ctx); err != nil {
			if errors.Is(err, ErrRunStopped) {
				o.suspend(state.RunFailed)
				o.suspendErr = ErrRunStopped
			} else {
				o.suspend(state.RunPaused)
				o.suspendErr = fmt.Errorf("run interrupted: %w", err)
			}
			result.Detail = fmt.Sprintf("suspended after %d of %d plan(s)", o.cursor, len(o.order))
			return result
		}
		if err := o.checkSignals(); err != nil {
			o.suspendErr = err
			result.Detail = fmt.Sprintf("suspended after %d of %d plan(s)", o.cursor, len(o.order))
			return result
		}

		step := o.order[o.cursor]
		plan := o.planBySlug(step.PlanSlug)
		if plan == nil {
			result.Err = fmt.Sprintf("plan %s not found in tree", step.PlanSlug)
			return result
		}
		if plan.Status == models.NodeStatusCompleted {
			o.cursor++
			continue
		}

		o.emit(Event{Type: EventPlanStarted, PlanSlug: plan.Slug})
		o.debug.Log("run %s: plan %s (%d of %d)", o.runID, plan.Slug, o.cursor+1, len(o.order))

		eval := o.gates.Evaluate(models.StageExecution, o.snapshot(plan.Slug, nil), o.overrides...)
		result.Gates = append(result.Gates, eval.Results...)
		if !eval.Passed() {
			result.Detail = fmt.Sprintf("plan %s blocked by %s", plan.Slug, blockerDetail(eval))
			o.emit(Event{Type: EventGateBlocked, PlanSlug: plan.Slug, Message: result.Detail})
			return result
		}

		if detail, ok := o.runTasks(ctx, step, plan); !ok {
			o.persistProgress(plan)
			result.Detail = detail
			return result
		}

		o.persistProgress(plan)
		o.cursor++
		o.saveCheckpoint()
		executed++
		o.emit(Event{Type: EventPlanCompleted, PlanSlug: plan.Slug,
			Message: fmt.Sprintf("%.0f%% complete", plan.CompletionPercentage)})
	}

	result.Passed = true
	result.Detail = fmt.Sprintf("%d plan(s) executed", executed)
	return result
}

// runTasks executes every pending task in the plan. It returns false
// with a detail string when a task blocks or fails; the caller persists
// the partial roll-up before surfacing the failure.
func (o *Orchestrator) runTasks(ctx context.Context, step PlanStep, plan *models.PhasePlan) (string, bool) {
	for i := range plan.Tasks {
		task := &plan.Tasks[i]
		if task.Status == models.NodeStatusCompleted {
			continue
		}
		o.emit(Event{Type: EventTaskStarted, PlanSlug: plan.Slug, TaskSlug: task.Slug})
		task.Status = models.NodeStatusInProgress

		spawn := models.SpawnDescriptor{
			Domain:        task.Domain,
			Slug:          task.Slug,
			ContextBudget: o.contextBudgetFor(step),
		}
		res, err := o.executor.Execute(ctx, spawn)
		if err != nil {
			task.Status = models.NodeStatusFailed
			o.emit(Event{Type: EventTaskFailed, PlanSlug: plan.Slug, TaskSlug: task.Slug, Err: err})
			return fmt.Sprintf("task %s: agent exchange failed: %v", task.Slug, err), false
		}
		o.debug.Log("run %s: task %s agent=%s outcome=%s tokens=%d",
			o.runID, task.Slug, res.AgentID, res.Outcome, res.TokensUsed)
		o.chargeUsage(step, res.TokensUsed)

		switch res.Outcome {
		case models.AgentCompleted:
			task.Status = models.NodeStatusCompleted
			task.CompletionPercentage = 100
			o.emit(Event{Type: EventTaskCompleted, PlanSlug: plan.Slug, TaskSlug: task.Slug,
				AgentID: res.AgentID, TokensUsed: res.TokensUsed})
		case models.AgentBlocked:
			task.Status = models.NodeStatusBlocked
			o.emit(Event{Type: EventTaskFailed, PlanSlug: plan.Slug, TaskSlug: task.Slug,
				AgentID: res.AgentID, Message: res.Reason})
			return fmt.Sprintf("task %s blocked: %s", task.Slug, res.Reason), false
		default:
			task.Status = models.NodeStatusFailed
			o.emit(Event{Type: EventTaskFailed, PlanSlug: plan.Slug, TaskSlug: task.Slug,
				AgentID: res.AgentID, Message: res.Reason})
			return fmt.Sprintf("task %s failed: %s", task.Slug, res.Reason), false
		}
	}
	return "", true
}

// runValidation runs the configured test command and evaluates the
// validation gates against the outcome.
func (o *Orchestrator) runValidation(ctx context.Context) models.StageResult {
	result := models.StageResult{Stage: models.StageValidation}
	if o.tests == nil {
		result.Skipped = true
		result.Detail = "no test runner configured"
		return result
	}

	outcome, output, err := o.tests.Run(ctx)
	if err != nil {
		result.Err = fmt.Sprintf("test runner: %v", err)
		return result
	}

	snap := o.snapshot("", nil)
	snap.Tests = outcome
	eval := o.gates.Evaluate(models.StageValidation, snap, o.overrides...)
	result.Gates = eval.Results
	if !eval.Passed() {
		detail := "blocked by " + blockerDetail(eval)
		if len(outcome.Failures) > 0 {
			detail += "; failures: " + strings.Join(outcome.Failures, ", ")
		}
		result.Detail = detail
		o.emit(Event{Type: EventGateBlocked, Message: detail})
		log.Printf("[orchestrator] validation output:\n%s", output)
		return result
	}

	result.Passed = true
	result.Detail = fmt.Sprintf("%d passed, %d failed, %d skipped", outcome.Passed, outcome.Failed, outcome.Skipped)
	return result
}

// runCompletion performs the final roll-up, refreshes the registry entry
// and closes the tracker issue when the vision finished.
func (o *Orchestrator) runCompletion(ctx context.Context) models.StageResult {
	result := models.StageResult{Stage: models.StageCompletion}

	progress.RollUpTree(o.batch, o.now().UTC())
	if err := o.store.SaveBatch(o.batch); err != nil {
		result.Err = fmt.Sprintf("persist final roll-up: %v", err)
		return result
	}
	if o.registry != nil {
		if err := o.registry.Register(o.batch.Vision); err != nil {
			log.Printf("[orchestrator] warning: refresh registry: %v", err)
		}
	}
	o.closeIssue(ctx)

	result.Passed = true
	result.Detail = fmt.Sprintf("overall completion %.0f%%", o.batch.Vision.CompletionPercentage)
	return result
}

func (o *Orchestrator) closeIssue(ctx context.Context) {
	if o.tracker == nil || !o.tracker.Available() {
		return
	}
	v := o.batch.Vision
	if v.Issue == nil || v.Status != models.NodeStatusCompleted {
		return
	}
	if err := o.tracker.CloseIssue(ctx, v.Issue); err != nil {
		log.Printf("[orchestrator] warning: close issue %s: %v", v.Issue.ID, err)
	}
}

// persistProgress rolls the plan and the whole tree up and writes the
// batch back to disk. Persistence failures are logged, not fatal; the
// in-memory tree stays authoritative for the rest of the run.
func (o *Orchestrator) persistProgress(plan *models.PhasePlan) {
	now := o.now().UTC()
	progress.RollUpPlan(plan, now)
	progress.RollUpTree(o.batch, now)
	if err := o.store.SaveBatch(o.batch); err != nil {
		log.Printf("[orchestrator] warning: persist progress: %v", err)
	}
}

// chargeUsage books spent tokens against the owning epic's allocation.
func (o *Orchestrator) chargeUsage(step PlanStep, tokens int64) {
	if o.budget == nil || tokens <= 0 {
		return
	}
	epicSlug := o.epicOf(step.RoadmapSlug)
	if epicSlug == "" {
		return
	}
	if err := o.budget.TrackUsage(epicSlug, tokens); err != nil {
		log.Printf("[orchestrator] warning: track usage for %s: %v", epicSlug, err)
		return
	}
	if alloc, ok := o.budget.Allocation(epicSlug); ok {
		o.recordBudgetEvent(state.EventUsage, epicSlug, tokens, alloc.Used)
		if alloc.Available < 0 {
			log.Printf("[orchestrator] epic %s overspent by %d tokens", epicSlug, -alloc.Available)
		}
	}
}

// contextBudgetFor returns the remaining allocation of the epic that
// owns the step, clamped at zero.
func (o *Orchestrator) contextBudgetFor(step PlanStep) int64 {
	if o.budget == nil {
		return 0
	}
	epicSlug := o.epicOf(step.RoadmapSlug)
	if alloc, ok := o.budget.Allocation(epicSlug); ok && alloc.Available > 0 {
		return alloc.Available
	}
	return 0
}

// snapshot assembles the gate input for the named plan. An empty slug
// yields a tree-wide snapshot with no dependency edges, used by the
// security and validation stages.
func (o *Orchestrator) snapshot(planSlug string, findings []string) gate.Snapshot {
	snap := gate.Snapshot{
		PlanSlug:         planSlug,
		Status:           o.statusLookup(),
		SecurityFindings: findings,
	}
	if planSlug == "" {
		return snap
	}
	if plan := o.planBySlug(planSlug); plan != nil {
		if rm := o.roadmapBySlug(plan.RoadmapSlug); rm != nil {
			snap.Edges = rm.Dependencies
			if o.budget != nil {
				if st, err := o.budget.Status(rm.EpicSlug); err == nil {
					snap.BudgetStatus = st
				}
			}
		}
	}
	return snap
}

// statusLookup resolves any slug in the loaded tree to its status.
func (o *Orchestrator) statusLookup() resolve.StatusLookup {
	return func(slug string) (models.NodeStatus, bool) {
		if p := o.planBySlug(slug); p != nil {
			return p.Status, true
		}
		if rm := o.roadmapBySlug(slug); rm != nil {
			return rm.Status, true
		}
		for _, e := range o.batch.Epics {
			if e.Slug == slug {
				return e.Status, true
			}
		}
		return "", false
	}
}

func (o *Orchestrator) planBySlug(slug string) *models.PhasePlan {
	for _, p := range o.batch.Plans {
		if p.Slug == slug {
			return p
		}
	}
	return nil
}

func (o *Orchestrator) roadmapBySlug(slug string) *models.Roadmap {
	for _, rm := range o.batch.Roadmaps {
		if rm.Slug == slug {
			return rm
		}
	}
	return nil
}

// epicOf returns the slug of the epic owning the named roadmap.
func (o *Orchestrator) epicOf(roadmapSlug string) string {
	if rm := o.roadmapBySlug(roadmapSlug); rm != nil {
		return rm.EpicSlug
	}
	return ""
}

// blockerDetail renders the first blocking gate with its details.
func blockerDetail(eval gate.Evaluation) string {
	name := eval.Blockers[0]
	for _, r := range eval.Results {
		if r.GateType == name && !r.Passed {
			return fmt.Sprintf("%s: %s", name, r.Details)
		}
	}
	return name
}
