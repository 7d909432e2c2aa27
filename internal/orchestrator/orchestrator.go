// Package orchestrator drives a vision through the staged execution
// machine: initialization, analysis, architecture, planning, security,
// execution, validation, completion.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/budget"
	"github.com/cairnhq/cairn/internal/checkpoint"
	"github.com/cairnhq/cairn/internal/gate"
	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/runner"
	"github.com/cairnhq/cairn/internal/signal"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/internal/store"
	"github.com/cairnhq/cairn/internal/track"
	"github.com/cairnhq/cairn/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has started.
	EventRunStarted EventType = "run_started"
	// EventStageStarted indicates a stage has begun.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a stage finished, passed or not.
	EventStageCompleted EventType = "stage_completed"
	// EventPlanStarted indicates a phase plan has begun executing.
	EventPlanStarted EventType = "plan_started"
	// EventPlanCompleted indicates a phase plan finished executing.
	EventPlanCompleted EventType = "plan_completed"
	// EventTaskStarted indicates an agent picked up a task.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed or was blocked.
	EventTaskFailed EventType = "task_failed"
	// EventGateBlocked indicates a gate refused a transition.
	EventGateBlocked EventType = "gate_blocked"
	// EventRunPaused indicates the run suspended to a checkpoint.
	EventRunPaused EventType = "run_paused"
	// EventRunCompleted indicates the run reached completion.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the run reached the failed stage.
	EventRunFailed EventType = "run_failed"
)

// Event is emitted by the orchestrator as the run progresses. The CLI
// and the watch TUI render these.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// VisionSlug names the vision being run.
	VisionSlug string
	// Stage is the machine stage at emission time.
	Stage models.Stage
	// PlanSlug names the related phase plan, if any.
	PlanSlug string
	// TaskSlug names the related task, if any.
	TaskSlug string
	// AgentID identifies the related agent, if any.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Err carries error details for failure events.
	Err error
	// TokensUsed is the cumulative token usage at emission time.
	TokensUsed int64
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Sentinel errors surfaced by Run. Callers branch on these to
// distinguish cooperative suspension from failure.
var (
	// ErrRunPaused reports that the run suspended to a checkpoint after
	// a pause signal. Resume with the latest snapshot.
	ErrRunPaused = errors.New("run paused")
	// ErrRunStopped reports that the run was aborted by a stop signal.
	ErrRunStopped = errors.New("run stopped")
	// ErrNoCheckpoint reports that a resume was requested but no
	// snapshot exists for the vision.
	ErrNoCheckpoint = errors.New("no checkpoint to resume from")
)

// AgentExecutor runs one execution agent per spawn descriptor and
// reports its outcome. The CLI adapts *agent.Executor to this.
type AgentExecutor interface {
	Execute(ctx context.Context, spawn models.SpawnDescriptor) (*AgentResult, error)
}

// AgentResult is the subset of an agent execution the machine consumes.
type AgentResult struct {
	// AgentID identifies the agent that ran.
	AgentID string
	// Outcome is the agent's reported status.
	Outcome models.AgentOutcome
	// Reason explains a blocked or failed outcome.
	Reason string
	// TokensUsed is the token usage for the exchange.
	TokensUsed int64
}

// RequiredConfig contains the configuration every run needs.
type RequiredConfig struct {
	// Store persists the vision tree.
	Store *store.Store
	// VisionSlug names the vision to run.
	VisionSlug string
}

// Option configures an Orchestrator. Use With* functions to create
// Options.
type Option func(*options)

type options struct {
	registry    *registry.Registry
	audit       state.AuditStore
	checkpoints *checkpoint.Store
	gates       *gate.Engine
	signals     *signal.Watcher
	tests       runner.TestRunner
	tracker     track.Tracker
	executor    AgentExecutor
	overrides   []string
	resume      bool
	now         func() time.Time
	debug       *DebugLogger
}

// WithRegistry sets the registry refreshed at completion.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithAudit sets the audit store recording runs and transitions.
func WithAudit(a state.AuditStore) Option {
	return func(o *options) { o.audit = a }
}

// WithCheckpoints sets the snapshot store used for suspend and resume.
func WithCheckpoints(c *checkpoint.Store) Option {
	return func(o *options) { o.checkpoints = c }
}

// WithGates sets the gating engine consulted at stage boundaries.
func WithGates(g *gate.Engine) Option {
	return func(o *options) { o.gates = g }
}

// WithSignals sets the control-file watcher for cooperative pause/stop.
func WithSignals(w *signal.Watcher) Option {
	return func(o *options) { o.signals = w }
}

// WithTestRunner sets the validation-stage test collaborator.
func WithTestRunner(r runner.TestRunner) Option {
	return func(o *options) { o.tests = r }
}

// WithTracker sets the issue tracker collaborator.
func WithTracker(t track.Tracker) Option {
	return func(o *options) { o.tracker = t }
}

// WithExecutor sets the execution agent collaborator.
func WithExecutor(e AgentExecutor) Option {
	return func(o *options) { o.executor = e }
}

// WithOverrides names gates the operator has overridden for this run.
func WithOverrides(names ...string) Option {
	return func(o *options) { o.overrides = append(o.overrides, names...) }
}

// WithResume makes Run reload the latest checkpoint instead of
// starting a fresh run.
func WithResume() Option {
	return func(o *options) { o.resume = true }
}

// WithClock overrides the time source. Mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDebugLog sets the trace logger. A nil logger is a no-op.
func WithDebugLog(l *DebugLogger) Option {
	return func(o *options) { o.debug = l }
}

// Orchestrator drives one vision through the stage machine. A single
// Orchestrator serves a single run; construct a new one per run.
type Orchestrator struct {
	store       *store.Store
	registry    *registry.Registry
	audit       state.AuditStore
	checkpoints *checkpoint.Store
	gates       *gate.Engine
	signals     *signal.Watcher
	tests       runner.TestRunner
	tracker     track.Tracker
	executor    AgentExecutor
	overrides   []string
	resume      bool
	now         func() time.Time
	debug       *DebugLogger

	slug    string
	runID   string
	current models.Stage
	batch   *hierarchy.Batch
	budget  *budget.Manager
	order   []PlanStep
	cursor  int
	results []models.StageResult

	// suspendErr is set when a stage handler suspends the run from
	// inside its walk; Run surfaces it instead of the stage result.
	suspendErr error

	// events is the channel for emitting orchestrator events.
	events chan Event
	// pause gates the execution walk for in-process pause/resume.
	pause *PauseController
}

// New creates an Orchestrator for one vision run.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	gates := o.gates
	if gates == nil {
		gates = gate.NewEngine()
	}
	return &Orchestrator{
		store:       req.Store,
		registry:    o.registry,
		audit:       o.audit,
		checkpoints: o.checkpoints,
		gates:       gates,
		signals:     o.signals,
		tests:       o.tests,
		tracker:     o.tracker,
		executor:    o.executor,
		overrides:   o.overrides,
		resume:      o.resume,
		now:         o.now,
		debug:       o.debug,
		slug:        req.VisionSlug,
		runID:       uuid.New().String()[:8],
		current:     models.StageInitialization,
		events:      make(chan Event, 100),
		pause:       NewPauseController(),
	}
}

// Events returns a read-only channel of orchestrator events.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// RunID returns the identifier of the current run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Stage returns the stage the machine is currently in.
func (o *Orchestrator) Stage() models.Stage {
	return o.current
}

// Results returns the stage results recorded so far, in order.
func (o *Orchestrator) Results() []models.StageResult {
	out := make([]models.StageResult, len(o.results))
	copy(out, o.results)
	return out
}

// Pause suspends the execution walk between plans. Existing agent
// exchanges run to completion.
func (o *Orchestrator) Pause() { o.pause.Pause() }

// Resume releases a Pause.
func (o *Orchestrator) Resume() { o.pause.Resume() }

// IsPaused reports whether the in-process pause is engaged.
func (o *Orchestrator) IsPaused() bool { return o.pause.IsPaused() }

// Stop aborts the run at the next checkpoint between plans.
func (o *Orchestrator) Stop() { o.pause.Stop() }

// Run drives the machine from its entry stage to a terminal stage:
//  1. Create (or reopen) the audit run record
//  2. Run the current stage's handler
//  3. On a blocking result, transition to failed and return
//  4. Otherwise advance: record the transition, checkpoint, move on
//  5. completion finishes the run; pause/stop signals suspend it
//
// Collaborator errors land on stage results and block progression;
// they never panic the machine.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.events)

	if o.resume {
		if err := o.reload(); err != nil {
			return err
		}
		// A resumed run may re-enter any stage, so the tree the later
		// handlers expect must be loaded up front.
		if err := o.prime(); err != nil {
			return fmt.Errorf("reload vision tree: %w", err)
		}
	}
	if err := o.openRun(); err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	o.emit(Event{
		Type:    EventRunStarted,
		Message: fmt.Sprintf("run %s started at stage %s", o.runID, o.current),
	})
	log.Printf("[orchestrator] run %s: vision %s entering %s", o.runID, o.slug, o.current)
	o.debug.Log("run %s: vision %s entering %s (resume=%v)", o.runID, o.slug, o.current, o.resume)

	for {
		if err := o.checkSignals(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			o.suspend(state.RunPaused)
			return fmt.Errorf("run interrupted: %w", err)
		}

		o.emit(Event{Type: EventStageStarted, Stage: o.current})
		result := o.runStage(ctx, o.current)
		o.results = append(o.results, result)
		o.debug.Log("run %s: stage %s passed=%v skipped=%v detail=%q err=%q",
			o.runID, result.Stage, result.Passed, result.Skipped, result.Detail, result.Err)
		if o.suspendErr != nil {
			err := o.suspendErr
			o.suspendErr = nil
			return err
		}
		o.emit(Event{
			Type:    EventStageCompleted,
			Stage:   o.current,
			Message: result.Detail,
			Err:     stageErr(result),
		})

		if blocked(result) {
			return o.fail(result)
		}
		if o.current == models.StageCompletion {
			o.finish()
			return nil
		}

		next := nextStage(o.current)
		if err := o.advance(next); err != nil {
			return err
		}
	}
}

// advance moves the machine to the next stage: legality check, audit
// append, checkpoint, then the in-memory stage update.
func (o *Orchestrator) advance(to models.Stage) error {
	if !CanTransition(o.current, to) {
		return fmt.Errorf("illegal transition %s -> %s", o.current, to)
	}
	tr := models.StageTransition{From: o.current, To: to, Timestamp: o.now().UTC()}
	o.recordTransition(tr)
	o.current = to
	o.saveCheckpoint()
	o.updateRunStage()
	log.Printf("[orchestrator] run %s: %s -> %s", o.runID, tr.From, tr.To)
	o.debug.Log("run %s: %s -> %s", o.runID, tr.From, tr.To)
	return nil
}

// fail transitions the machine to the failed terminal stage and closes
// out the audit run.
func (o *Orchestrator) fail(result models.StageResult) error {
	reason := result.Detail
	if result.Err != "" {
		reason = result.Err
	}
	tr := models.StageTransition{From: o.current, To: models.StageFailed, Timestamp: o.now().UTC()}
	o.recordTransition(tr)
	o.current = models.StageFailed
	o.saveCheckpoint()
	o.closeRun(state.RunFailed, reason)
	o.emit(Event{Type: EventRunFailed, Stage: result.Stage, Message: reason})
	log.Printf("[orchestrator] run %s: failed at %s: %s", o.runID, result.Stage, reason)
	o.debug.Log("run %s: failed at %s: %s", o.runID, result.Stage, reason)
	return fmt.Errorf("run failed at %s: %s", result.Stage, reason)
}

// finish closes out a completed run.
func (o *Orchestrator) finish() {
	o.closeRun(state.RunCompleted, "")
	o.deleteCheckpoint()
	o.emit(Event{
		Type:    EventRunCompleted,
		Stage:   models.StageCompletion,
		Message: fmt.Sprintf("vision %s completed", o.slug),
	})
	log.Printf("[orchestrator] run %s: vision %s completed", o.runID, o.slug)
	o.debug.Log("run %s: vision %s completed", o.runID, o.slug)
}

// checkSignals polls the control-file watcher and the in-process pause
// controller. A pause suspends the run to a checkpoint; a stop aborts
// it.
func (o *Orchestrator) checkSignals() error {
	if o.pause.IsStopped() {
		o.suspend(state.RunFailed)
		return ErrRunStopped
	}
	if o.signals == nil {
		return nil
	}
	if o.signals.ShouldStop() {
		o.suspend(state.RunFailed)
		return ErrRunStopped
	}
	if o.signals.ShouldPause() {
		o.suspend(state.RunPaused)
		o.emit(Event{Type: EventRunPaused, Stage: o.current})
		return ErrRunPaused
	}
	return nil
}

// suspend records the transition into paused, checkpoints the machine
// so a resume can re-enter the current stage, and closes the audit
// run with the given status.
func (o *Orchestrator) suspend(status state.RunStatus) {
	tr := models.StageTransition{From: o.current, To: models.StagePaused, Timestamp: o.now().UTC()}
	o.recordTransition(tr)
	o.saveCheckpoint()
	if status == state.RunFailed {
		o.closeRun(state.RunFailed, "stopped by operator")
		log.Printf("[orchestrator] run %s: stopped at %s", o.runID, o.current)
		o.debug.Log("run %s: stopped at %s", o.runID, o.current)
		return
	}
	o.closeRun(state.RunPaused, "")
	log.Printf("[orchestrator] run %s: paused at %s", o.runID, o.current)
	o.debug.Log("run %s: paused at %s (cursor=%d)", o.runID, o.current, o.cursor)
}

// machineState is the JSON payload checkpointed per run. Stage names
// the stage to re-enter; Cursor points at the next plan in the
// execution order.
type machineState struct {
	Stage     models.Stage `json:"stage"`
	PlanOrder []PlanStep   `json:"plan_order,omitempty"`
	Cursor    int          `json:"cursor"`
	Overrides []string     `json:"overrides,omitempty"`
}

// PlanStep locates one phase plan in the execution order.
type PlanStep struct {
	// RoadmapSlug names the plan's owning roadmap.
	RoadmapSlug string `json:"roadmap_slug"`
	// PlanSlug names the phase plan.
	PlanSlug string `json:"plan_slug"`
}

// reload restores machine state from the latest checkpoint for the
// vision. The loaded stage is re-entered, not replayed.
func (o *Orchestrator) reload() error {
	if o.checkpoints == nil {
		return ErrNoCheckpoint
	}
	snap, err := o.checkpoints.Latest(o.slug)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if snap == nil {
		return ErrNoCheckpoint
	}
	var ms machineState
	if err := snap.Decode(&ms); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	if ms.Stage.Terminal() {
		return fmt.Errorf("checkpointed run %s already reached %s: %w", snap.RunID, ms.Stage, ErrNoCheckpoint)
	}
	o.runID = snap.RunID
	o.current = ms.Stage
	o.order = ms.PlanOrder
	o.cursor = ms.Cursor
	if len(o.overrides) == 0 {
		o.overrides = ms.Overrides
	}
	if o.signals != nil {
		o.signals.Reset()
	}
	log.Printf("[orchestrator] run %s: resuming vision %s at %s (plan %d/%d)",
		o.runID, o.slug, o.current, o.cursor, len(o.order))
	return nil
}

// saveCheckpoint persists the current machine state. No-op without a
// checkpoint store; a write failure is logged, not fatal.
func (o *Orchestrator) saveCheckpoint() {
	if o.checkpoints == nil {
		return
	}
	snap := &checkpoint.Snapshot{RunID: o.runID, VisionSlug: o.slug, Stage: o.current}
	if err := snap.Encode(machineState{
		Stage:     o.current,
		PlanOrder: o.order,
		Cursor:    o.cursor,
		Overrides: o.overrides,
	}); err != nil {
		log.Printf("[orchestrator] warning: encode checkpoint: %v", err)
		return
	}
	if err := o.checkpoints.Save(snap); err != nil {
		log.Printf("[orchestrator] warning: save checkpoint: %v", err)
	}
}

// deleteCheckpoint removes the run's snapshot after completion.
func (o *Orchestrator) deleteCheckpoint() {
	if o.checkpoints == nil {
		return
	}
	if err := o.checkpoints.Delete(o.runID); err != nil {
		log.Printf("[orchestrator] warning: delete checkpoint: %v", err)
	}
}

// openRun creates the audit run record, or reopens a resumed one.
func (o *Orchestrator) openRun() error {
	if o.audit == nil {
		return nil
	}
	if o.resume {
		run, err := o.audit.GetRun(o.runID)
		if err != nil {
			return err
		}
		if run != nil {
			run.Status = state.RunActive
			run.Stage = o.current
			run.FinishedAt = nil
			run.Error = ""
			return o.audit.UpdateRun(run)
		}
	}
	return o.audit.CreateRun(&state.Run{
		ID:         o.runID,
		VisionSlug: o.slug,
		Stage:      o.current,
		Status:     state.RunActive,
		StartedAt:  o.now().UTC(),
	})
}

// updateRunStage mirrors the current stage onto the audit run record.
func (o *Orchestrator) updateRunStage() {
	if o.audit == nil {
		return
	}
	run, err := o.audit.GetRun(o.runID)
	if err != nil || run == nil {
		return
	}
	run.Stage = o.current
	if err := o.audit.UpdateRun(run); err != nil {
		log.Printf("[orchestrator] warning: update run: %v", err)
	}
}

// closeRun finishes the audit run record with a terminal status.
func (o *Orchestrator) closeRun(status state.RunStatus, reason string) {
	if o.audit == nil {
		return
	}
	run, err := o.audit.GetRun(o.runID)
	if err != nil || run == nil {
		return
	}
	now := o.now().UTC()
	run.Stage = o.current
	run.Status = status
	run.FinishedAt = &now
	run.Error = reason
	if err := o.audit.UpdateRun(run); err != nil {
		log.Printf("[orchestrator] warning: close run: %v", err)
	}
}

// recordTransition appends a transition to the audit trail.
func (o *Orchestrator) recordTransition(tr models.StageTransition) {
	if o.audit == nil {
		return
	}
	if err := o.audit.RecordTransition(o.runID, tr); err != nil {
		log.Printf("[orchestrator] warning: record transition: %v", err)
	}
}

// recordBudgetEvent appends a budget mutation to the audit trail.
func (o *Orchestrator) recordBudgetEvent(kind state.BudgetEventKind, childID string, delta, total int64) {
	if o.audit == nil {
		return
	}
	err := o.audit.RecordBudgetEvent(&state.BudgetEvent{
		RunID:    o.runID,
		NodeSlug: o.slug,
		ChildID:  childID,
		Kind:     kind,
		Delta:    delta,
		Total:    total,
		At:       o.now().UTC(),
	})
	if err != nil {
		log.Printf("[orchestrator] warning: record budget event: %v", err)
	}
}

// emit sends an event without blocking; a full channel drops it.
func (o *Orchestrator) emit(ev Event) {
	ev.VisionSlug = o.slug
	if ev.Stage == "" {
		ev.Stage = o.current
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}
	select {
	case o.events <- ev:
	default:
	}
}

// blocked reports whether a stage result stops the machine. Skipped
// stages never block.
func blocked(r models.StageResult) bool {
	if r.Skipped {
		return false
	}
	return !r.Passed || r.Err != ""
}

// stageErr converts a stage result's error message back to an error
// for event consumers.
func stageErr(r models.StageResult) error {
	if r.Err == "" {
		return nil
	}
	return errors.New(r.Err)
}
