package models

import "time"

// NodeStatus represents the lifecycle state of a hierarchy node.
type NodeStatus string

const (
	// NodeStatusPlanning indicates the node is still being planned.
	NodeStatusPlanning NodeStatus = "planning"
	// NodeStatusPending indicates the node has not started.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusInProgress indicates work on the node is underway.
	NodeStatusInProgress NodeStatus = "in_progress"
	// NodeStatusBlocked indicates the node cannot proceed.
	NodeStatusBlocked NodeStatus = "blocked"
	// NodeStatusCompleted indicates the node finished successfully.
	NodeStatusCompleted NodeStatus = "completed"
	// NodeStatusFailed indicates the node failed.
	NodeStatusFailed NodeStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPlanning, NodeStatusPending, NodeStatusInProgress,
		NodeStatusBlocked, NodeStatusCompleted, NodeStatusFailed:
		return true
	default:
		return false
	}
}

// NodeMeta holds the fields shared by every hierarchy node.
// CompletionPercentage is derived from children whenever children exist;
// only leaf tasks own their percentage outright.
type NodeMeta struct {
	// Slug uniquely identifies the node within its registry scope.
	Slug string `yaml:"slug" json:"slug"`
	// Title is the human-readable name.
	Title string `yaml:"title" json:"title"`
	// Status is the current lifecycle state.
	Status NodeStatus `yaml:"status" json:"status"`
	// CompletionPercentage is the roll-up completion in [0,100].
	CompletionPercentage float64 `yaml:"completion_percentage" json:"completion_percentage"`
	// Created is when the node was first written.
	Created time.Time `yaml:"created" json:"created"`
	// Updated is when the node was last written.
	Updated time.Time `yaml:"updated" json:"updated"`
}

// Touch updates the Updated timestamp. Stores call this before writing.
func (m *NodeMeta) Touch(now time.Time) {
	if m.Created.IsZero() {
		m.Created = now
	}
	m.Updated = now
}

// PlanRef is a denormalized child reference held by a parent node.
// The child's own file stays authoritative; the ref mirrors its
// top-level fields for cheap roll-ups.
type PlanRef struct {
	// Slug identifies the referenced child.
	Slug string `yaml:"slug" json:"slug"`
	// Title mirrors the child's title.
	Title string `yaml:"title" json:"title"`
	// Status mirrors the child's status.
	Status NodeStatus `yaml:"status" json:"status"`
	// CompletionPercentage mirrors the child's roll-up completion.
	CompletionPercentage float64 `yaml:"completion_percentage" json:"completion_percentage"`
}

// DependencyEdge is a directed ordering constraint between two siblings.
// Self-loops are rejected at creation; cycles are detected during
// resolution and reported as validation errors.
type DependencyEdge struct {
	// DependentSlug is the node that must wait.
	DependentSlug string `yaml:"dependent_slug" json:"dependent_slug"`
	// DependsOnSlug is the node it waits for.
	DependsOnSlug string `yaml:"depends_on_slug" json:"depends_on_slug"`
	// Reason records why the edge exists.
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Vision is the root of a planning hierarchy, created from one
// natural-language request.
type Vision struct {
	NodeMeta `yaml:",inline"`
	// PlanType is the tier the decision engine chose for this hierarchy.
	PlanType PlanType `yaml:"plan_type" json:"plan_type"`
	// Request preserves the original natural-language request.
	Request string `yaml:"request,omitempty" json:"request,omitempty"`
	// Epics references the child epics in creation order.
	Epics []PlanRef `yaml:"epics,omitempty" json:"epics,omitempty"`
	// Dependencies holds ordering constraints between child epics.
	Dependencies []DependencyEdge `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// Budget is the token budget this vision allocates to its epics.
	Budget *BudgetState `yaml:"budget,omitempty" json:"budget,omitempty"`
	// Issue is the external tracker record, if one was created.
	Issue *IssueRef `yaml:"issue,omitempty" json:"issue,omitempty"`
}

// Epic groups related roadmaps under a vision.
type Epic struct {
	NodeMeta `yaml:",inline"`
	// VisionSlug names the owning vision.
	VisionSlug string `yaml:"vision_slug" json:"vision_slug"`
	// Roadmaps references the child roadmaps in creation order.
	Roadmaps []PlanRef `yaml:"roadmaps,omitempty" json:"roadmaps,omitempty"`
	// Dependencies holds ordering constraints between child roadmaps.
	Dependencies []DependencyEdge `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// Budget is the token budget this epic allocates to its roadmaps.
	Budget *BudgetState `yaml:"budget,omitempty" json:"budget,omitempty"`
	// Issue is the external tracker record, if one was created.
	Issue *IssueRef `yaml:"issue,omitempty" json:"issue,omitempty"`
}

// Roadmap sequences phase plans under an epic.
type Roadmap struct {
	NodeMeta `yaml:",inline"`
	// EpicSlug names the owning epic.
	EpicSlug string `yaml:"epic_slug" json:"epic_slug"`
	// Plans references the child phase plans in execution order.
	Plans []PlanRef `yaml:"plans,omitempty" json:"plans,omitempty"`
	// Dependencies holds ordering constraints between child plans.
	Dependencies []DependencyEdge `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// Phases holds the legacy flat phase array. Populated only when an
	// old-format file is read; migration converts it into Plans and
	// Dependencies and clears it.
	Phases []LegacyPhase `yaml:"phases,omitempty" json:"phases,omitempty"`
	// Budget is the token budget this roadmap allocates to its plans.
	Budget *BudgetState `yaml:"budget,omitempty" json:"budget,omitempty"`
	// Issue is the external tracker record, if one was created.
	Issue *IssueRef `yaml:"issue,omitempty" json:"issue,omitempty"`
}

// LegacyPhase is one entry of the pre-reference roadmap format.
type LegacyPhase struct {
	// Name is the legacy phase identifier, reused as the plan slug.
	Name string `yaml:"name" json:"name"`
	// Title is the phase title.
	Title string `yaml:"title" json:"title"`
	// Status is the phase status in the legacy format.
	Status NodeStatus `yaml:"status,omitempty" json:"status,omitempty"`
	// CompletionPercentage is the phase completion in the legacy format.
	CompletionPercentage float64 `yaml:"completion_percentage,omitempty" json:"completion_percentage,omitempty"`
	// DependsOn lists legacy phase names this phase waited for.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// PhasePlan is the executable unit of the hierarchy. Its tasks are
// embedded rather than stored as separate files.
type PhasePlan struct {
	NodeMeta `yaml:",inline"`
	// RoadmapSlug names the owning roadmap.
	RoadmapSlug string `yaml:"roadmap_slug" json:"roadmap_slug"`
	// Tasks are the leaf work items of this plan.
	Tasks []Task `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	// Issue is the external tracker record, if one was created.
	Issue *IssueRef `yaml:"issue,omitempty" json:"issue,omitempty"`
}

// Task is a leaf node. It has no children, so its completion percentage
// is authoritative rather than derived.
type Task struct {
	// Slug uniquely identifies the task within its plan.
	Slug string `yaml:"slug" json:"slug"`
	// Title is the short description of the task.
	Title string `yaml:"title" json:"title"`
	// Status is the current state of the task.
	Status NodeStatus `yaml:"status" json:"status"`
	// CompletionPercentage is the task's own completion in [0,100].
	CompletionPercentage float64 `yaml:"completion_percentage" json:"completion_percentage"`
	// Domain is the classified domain, used for agent spawn descriptors.
	Domain string `yaml:"domain,omitempty" json:"domain,omitempty"`
	// Files lists paths the task expects to touch.
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
	// DependsOn lists sibling task slugs that must complete first.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// DependencyCheck reports whether a node's declared dependencies are
// satisfied. It is a result, not an error: the state machine treats an
// unsatisfied check as "not ready".
type DependencyCheck struct {
	// Satisfied is true when every dependency is completed.
	Satisfied bool `json:"satisfied"`
	// Missing lists the slugs of dependencies not yet completed.
	Missing []string `json:"missing,omitempty"`
}
