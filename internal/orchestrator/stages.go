package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cairnhq/cairn/internal/budget"
	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/internal/resolve"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/pkg/models"
)

// validTransitions defines the legal stage transitions. Each key is a
// source stage; the value is the set of valid targets. The machine
// moves strictly forward, except that every active stage may suspend
// to paused and paused may re-enter any active stage on resume.
var validTransitions = map[models.Stage]map[models.Stage]bool{
	models.StageInitialization: {models.StageAnalysis: true, models.StageFailed: true, models.StagePaused: true},
	models.StageAnalysis:       {models.StageArchitecture: true, models.StageFailed: true, models.StagePaused: true},
	models.StageArchitecture:   {models.StagePlanning: true, models.StageFailed: true, models.StagePaused: true},
	models.StagePlanning:       {models.StageSecurity: true, models.StageFailed: true, models.StagePaused: true},
	models.StageSecurity:       {models.StageExecution: true, models.StageFailed: true, models.StagePaused: true},
	models.StageExecution:      {models.StageValidation: true, models.StageFailed: true, models.StagePaused: true},
	models.StageValidation:     {models.StageCompletion: true, models.StageFailed: true, models.StagePaused: true},
	models.StagePaused: {
		models.StageInitialization: true,
		models.StageAnalysis:       true,
		models.StageArchitecture:   true,
		models.StagePlanning:       true,
		models.StageSecurity:       true,
		models.StageExecution:      true,
		models.StageValidation:     true,
		models.StageCompletion:     true,
	},
}

// CanTransition checks whether a stage transition is legal.
func CanTransition(from, to models.Stage) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// nextStage returns the forward successor of an active stage.
func nextStage(s models.Stage) models.Stage {
	switch s {
	case models.StageInitialization:
		return models.StageAnalysis
	case models.StageAnalysis:
		return models.StageArchitecture
	case models.StageArchitecture:
		return models.StagePlanning
	case models.StagePlanning:
		return models.StageSecurity
	case models.StageSecurity:
		return models.StageExecution
	case models.StageExecution:
		return models.StageValidation
	case models.StageValidation:
		return models.StageCompletion
	default:
		return models.StageFailed
	}
}

// runStage dispatches to the handler for one stage and returns its
// result. Handlers attach collaborator errors to the result instead
// of returning them.
func (o *Orchestrator) runStage(ctx context.Context, stage models.Stage) models.StageResult {
	switch stage {
	case models.StageInitialization:
		return o.runInitialization(ctx)
	case models.StageAnalysis:
		return o.runAnalysis()
	case models.StageArchitecture:
		return o.runArchitecture()
	case models.StagePlanning:
		return o.runPlanning()
	case models.StageSecurity:
		return o.runSecurity()
	case models.StageExecution:
		return o.runExecution(ctx)
	case models.StageValidation:
		return o.runValidation(ctx)
	case models.StageCompletion:
		return o.runCompletion(ctx)
	default:
		return models.StageResult{Stage: stage, Err: fmt.Sprintf("no handler for stage %s", stage)}
	}
}

// runInitialization loads the vision tree, wires the budget manager,
// and makes sure the tracker has an issue for the vision.
func (o *Orchestrator) runInitialization(ctx context.Context) models.StageResult {
	result := models.StageResult{Stage: models.StageInitialization}

	if err := o.prime(); err != nil {
		result.Err = fmt.Sprintf("load vision tree: %v", err)
		return result
	}

	o.ensureIssue(ctx)

	result.Passed = true
	result.Detail = fmt.Sprintf("loaded %d epics, %d roadmaps, %d plans",
		len(o.batch.Epics), len(o.batch.Roadmaps), len(o.batch.Plans))
	return result
}

// prime loads the vision tree and wires the budget manager over the
// vision's pool. Idempotent; a resumed run primes before re-entering
// its checkpointed stage.
func (o *Orchestrator) prime() error {
	batch, err := o.store.LoadTree(o.slug)
	if err != nil {
		return err
	}
	o.batch = batch
	o.budget = budget.Wrap(batch.Vision.Budget)
	return nil
}

// ensureIssue creates the vision's tracking issue when a tracker is
// configured and none exists yet. Tracker failures are logged, never
// fatal: tracking is auxiliary.
func (o *Orchestrator) ensureIssue(ctx context.Context) {
	if o.tracker == nil || !o.tracker.Available() || o.batch.Vision.Issue != nil {
		return
	}
	ref, err := o.tracker.CreateIssue(ctx, models.IssueRequest{
		Title: o.batch.Vision.Title,
		Body:  o.batch.Vision.Request,
	})
	if err != nil {
		log.Printf("[orchestrator] warning: create tracking issue: %v", err)
		return
	}
	o.batch.Vision.Issue = ref
	if err := o.store.SaveVision(o.batch.Vision); err != nil {
		log.Printf("[orchestrator] warning: save vision issue ref: %v", err)
	}
}

// runAnalysis validates every dependency edge set in the tree: no
// self-loops survived creation, and no cycle exists at any level.
func (o *Orchestrator) runAnalysis() models.StageResult {
	result := models.StageResult{Stage: models.StageAnalysis}

	nodes := 0
	edges := 0
	for _, scope := range o.edgeScopes() {
		g, err := resolve.FromEdges(scope.edges)
		if err != nil {
			result.Err = fmt.Sprintf("%s dependencies: %v", scope.name, err)
			return result
		}
		if err := g.Validate(); err != nil {
			result.Err = fmt.Sprintf("%s dependencies: %v", scope.name, err)
			return result
		}
		nodes += g.Size()
		edges += len(scope.edges)
	}

	result.Passed = true
	result.Detail = fmt.Sprintf("%d dependency edges across %d nodes, no cycles", edges, nodes)
	return result
}

// edgeScope names one sibling group's dependency edges for analysis.
type edgeScope struct {
	name  string
	edges []models.DependencyEdge
}

// edgeScopes collects every dependency edge set in the loaded tree:
// epic ordering on the vision, plan ordering on each roadmap.
func (o *Orchestrator) edgeScopes() []edgeScope {
	scopes := []edgeScope{{name: "vision " + o.slug, edges: o.batch.Vision.Dependencies}}
	for _, e := range o.batch.Epics {
		scopes = append(scopes, edgeScope{name: "epic " + e.Slug, edges: e.Dependencies})
	}
	for _, rm := range o.batch.Roadmaps {
		scopes = append(scopes, edgeScope{name: "roadmap " + rm.Slug, edges: rm.Dependencies})
	}
	return scopes
}

// runArchitecture checks referential integrity of the loaded tree:
// every child reference resolves to a loaded node, plans carry tasks,
// and no roadmap is stuck in the legacy phase format.
func (o *Orchestrator) runArchitecture() models.StageResult {
	result := models.StageResult{Stage: models.StageArchitecture}

	epics := make(map[string]*models.Epic, len(o.batch.Epics))
	for _, e := range o.batch.Epics {
		epics[e.Slug] = e
	}
	roadmaps := make(map[string]*models.Roadmap, len(o.batch.Roadmaps))
	for _, rm := range o.batch.Roadmaps {
		roadmaps[rm.Slug] = rm
	}
	plans := make(map[string]*models.PhasePlan, len(o.batch.Plans))
	for _, p := range o.batch.Plans {
		plans[p.Slug] = p
	}

	var problems []string
	for _, ref := range o.batch.Vision.Epics {
		if _, ok := epics[ref.Slug]; !ok {
			problems = append(problems, fmt.Sprintf("vision references missing epic %s", ref.Slug))
		}
	}
	for _, e := range o.batch.Epics {
		for _, ref := range e.Roadmaps {
			if _, ok := roadmaps[ref.Slug]; !ok {
				problems = append(problems, fmt.Sprintf("epic %s references missing roadmap %s", e.Slug, ref.Slug))
			}
		}
	}
	for _, rm := range o.batch.Roadmaps {
		if len(rm.Phases) > 0 && len(rm.Plans) == 0 {
			problems = append(problems, fmt.Sprintf("roadmap %s uses the legacy phase format; run migrate first", rm.Slug))
			continue
		}
		for _, ref := range rm.Plans {
			if _, ok := plans[ref.Slug]; !ok {
				problems = append(problems, fmt.Sprintf("roadmap %s references missing plan %s", rm.Slug, ref.Slug))
			}
		}
	}
	for _, p := range o.batch.Plans {
		if len(p.Tasks) == 0 {
			problems = append(problems, fmt.Sprintf("plan %s has no tasks", p.Slug))
		}
	}

	if len(problems) > 0 {
		result.Detail = strings.Join(problems, "; ")
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("hierarchy intact: %d plan(s) reachable", len(o.batch.Plans))
	return result
}

// runPlanning computes the execution order and makes sure every epic
// holds a budget allocation. Roadmaps run in epic order; plans within
// a roadmap run in topological order of the roadmap's edges.
func (o *Orchestrator) runPlanning() models.StageResult {
	result := models.StageResult{Stage: models.StagePlanning}

	order, err := o.planOrder()
	if err != nil {
		result.Err = fmt.Sprintf("compute execution order: %v", err)
		return result
	}
	o.order = order
	if o.cursor > len(o.order) {
		o.cursor = len(o.order)
	}

	allocated := o.allocateMissing()

	result.Passed = true
	result.Detail = fmt.Sprintf("%d plan(s) ordered", len(order))
	if allocated > 0 {
		result.Detail += fmt.Sprintf(", %d epic allocation(s) created", allocated)
	}
	return result
}

// planOrder flattens the tree into the sequential execution order.
func (o *Orchestrator) planOrder() ([]PlanStep, error) {
	roadmapsByEpic := make(map[string][]*models.Roadmap)
	for _, rm := range o.batch.Roadmaps {
		roadmapsByEpic[rm.EpicSlug] = append(roadmapsByEpic[rm.EpicSlug], rm)
	}
	epicsBySlug := make(map[string]*models.Epic, len(o.batch.Epics))
	for _, e := range o.batch.Epics {
		epicsBySlug[e.Slug] = e
	}

	var order []PlanStep
	for _, epicRef := range o.batch.Vision.Epics {
		epic, ok := epicsBySlug[epicRef.Slug]
		if !ok {
			continue
		}
		for _, rmRef := range epic.Roadmaps {
			rm := o.roadmapBySlug(rmRef.Slug)
			if rm == nil {
				continue
			}
			slugs, err := orderedPlanSlugs(rm)
			if err != nil {
				return nil, err
			}
			for _, slug := range slugs {
				order = append(order, PlanStep{RoadmapSlug: rm.Slug, PlanSlug: slug})
			}
		}
	}
	return order, nil
}

// orderedPlanSlugs returns a roadmap's plan slugs respecting its
// dependency edges. Without edges the listed order stands.
func orderedPlanSlugs(rm *models.Roadmap) ([]string, error) {
	if len(rm.Dependencies) == 0 {
		slugs := make([]string, 0, len(rm.Plans))
		for _, ref := range rm.Plans {
			slugs = append(slugs, ref.Slug)
		}
		return slugs, nil
	}

	g := resolve.NewGraph()
	for _, ref := range rm.Plans {
		g.AddNode(ref.Slug)
	}
	for _, edge := range rm.Dependencies {
		if err := g.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("roadmap %s: %w", rm.Slug, err)
		}
	}
	ordered, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("roadmap %s: %w", rm.Slug, err)
	}
	return ordered, nil
}

// allocateMissing gives an even share of the remaining budget to every
// epic that lacks an allocation, so execution can charge usage against
// it. Returns how many allocations were created.
func (o *Orchestrator) allocateMissing() int {
	if o.budget == nil || o.budget.Total() == 0 {
		return 0
	}
	var missing []string
	for _, e := range o.batch.Epics {
		if _, ok := o.budget.Allocation(e.Slug); !ok {
			missing = append(missing, e.Slug)
		}
	}
	if len(missing) == 0 {
		return 0
	}
	sort.Strings(missing)
	share := o.budget.Available() / int64(len(missing))
	if share <= 0 {
		return 0
	}
	created := 0
	for _, slug := range missing {
		if err := o.budget.Allocate(slug, share); err != nil {
			log.Printf("[orchestrator] warning: allocate %s: %v", slug, err)
			continue
		}
		o.recordBudgetEvent(state.EventAllocate, slug, share, share)
		created++
	}
	return created
}

// runSecurity scans the tree for sensitive file paths and evaluates
// the security stage gates over the findings. A blocking finding on a
// non-overridable gate fails the run.
func (o *Orchestrator) runSecurity() models.StageResult {
	result := models.StageResult{Stage: models.StageSecurity}

	findings := scanFindings(o.batch)
	eval := o.gates.Evaluate(models.StageSecurity, o.snapshot("", findings), o.overrides...)
	result.Gates = eval.Results

	if !eval.Passed() {
		result.Detail = fmt.Sprintf("blocked by %s: %s",
			strings.Join(eval.Blockers, ", "), strings.Join(findings, "; "))
		o.emit(Event{Type: EventGateBlocked, Stage: models.StageSecurity, Message: result.Detail})
		return result
	}

	result.Passed = true
	if len(findings) > 0 {
		result.Detail = fmt.Sprintf("%d finding(s) overridden", len(findings))
	} else {
		result.Detail = "no security findings"
	}
	return result
}

// Sensitive path markers checked by the security scan. Extensions and
// path segments that carry credentials rather than code.
var (
	sensitiveExts  = []string{".pem", ".key", ".env", ".p12", ".pfx", ".crt", ".jks", ".keystore"}
	sensitiveDirs  = []string{"secrets", "credentials", ".ssh", "certs", "private_keys"}
	sensitiveNames = []string{".env", "id_rsa", "id_ed25519", ".netrc", ".npmrc"}
)

// scanFindings flags task files whose paths look like credential
// material. Findings name the task and the path so the operator can
// judge them.
func scanFindings(batch *hierarchy.Batch) []string {
	var findings []string
	for _, plan := range batch.Plans {
		for _, task := range plan.Tasks {
			for _, file := range task.Files {
				if reason := sensitivePath(file); reason != "" {
					findings = append(findings,
						fmt.Sprintf("task %s touches %s (%s)", task.Slug, file, reason))
				}
			}
		}
	}
	return findings
}

// sensitivePath reports why a path is flagged, or "" when it is clean.
func sensitivePath(path string) string {
	lower := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	base := lower
	if i := strings.LastIndex(lower, "/"); i >= 0 {
		base = lower[i+1:]
	}
	for _, name := range sensitiveNames {
		if base == name || strings.HasPrefix(base, name+".") {
			return "credential file"
		}
	}
	for _, ext := range sensitiveExts {
		if strings.HasSuffix(base, ext) {
			return "sensitive file type " + ext
		}
	}
	for _, dir := range sensitiveDirs {
		if strings.Contains(lower, "/"+dir+"/") || strings.HasPrefix(lower, dir+"/") {
			return "protected directory " + dir
		}
	}
	return ""
}
