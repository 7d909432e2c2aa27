package models

// PlanType represents how much planning hierarchy a request warrants.
type PlanType string

const (
	// PlanTaskList is a flat list of tasks with no hierarchy above them.
	PlanTaskList PlanType = "task_list"
	// PlanPhaseDev is a single development plan split into phases.
	PlanPhaseDev PlanType = "phase_dev_plan"
	// PlanRoadmap is a multi-phase roadmap grouped under one epic.
	PlanRoadmap PlanType = "roadmap"
	// PlanEpic is a multi-roadmap epic.
	PlanEpic PlanType = "epic"
	// PlanVisionFull is a fully autonomous vision spanning multiple epics.
	PlanVisionFull PlanType = "vision_full"
)

// Valid returns true if the plan type is a known value.
func (p PlanType) Valid() bool {
	switch p {
	case PlanTaskList, PlanPhaseDev, PlanRoadmap, PlanEpic, PlanVisionFull:
		return true
	default:
		return false
	}
}

// Rank returns the ordinal position of the plan type, from 1 (task_list)
// to 5 (vision_full). Unknown types rank 0.
func (p PlanType) Rank() int {
	switch p {
	case PlanTaskList:
		return 1
	case PlanPhaseDev:
		return 2
	case PlanRoadmap:
		return 3
	case PlanEpic:
		return 4
	case PlanVisionFull:
		return 5
	default:
		return 0
	}
}

// Scale is the coarse size classification of a request.
type Scale string

const (
	// ScaleSmall is for requests touching a handful of files in one domain.
	ScaleSmall Scale = "S"
	// ScaleMedium is for multi-file, multi-domain requests.
	ScaleMedium Scale = "M"
	// ScaleLarge is for requests that warrant a full hierarchy.
	ScaleLarge Scale = "L"
)

// Valid returns true if the scale is a known value.
func (s Scale) Valid() bool {
	switch s {
	case ScaleSmall, ScaleMedium, ScaleLarge:
		return true
	default:
		return false
	}
}

// MaxPlanType returns the highest plan tier reachable at this scale.
// The cap is a hard ceiling applied after scoring, not an average.
func (s Scale) MaxPlanType() PlanType {
	switch s {
	case ScaleSmall:
		return PlanPhaseDev
	case ScaleMedium:
		return PlanEpic
	default:
		return PlanVisionFull
	}
}

// Intent classifies what kind of change a request asks for.
type Intent string

const (
	// IntentBuild is net-new construction.
	IntentBuild Intent = "build"
	// IntentModify changes existing behavior.
	IntentModify Intent = "modify"
	// IntentRefactor restructures without behavior change.
	IntentRefactor Intent = "refactor"
	// IntentMigrate moves between platforms, formats, or versions.
	IntentMigrate Intent = "migrate"
	// IntentOptimize improves performance of existing behavior.
	IntentOptimize Intent = "optimize"
)

// Valid returns true if the intent is a known value.
func (i Intent) Valid() bool {
	switch i {
	case IntentBuild, IntentModify, IntentRefactor, IntentMigrate, IntentOptimize:
		return true
	default:
		return false
	}
}

// ParsedPrompt is the structured form of a natural-language request,
// produced by the classifier and consumed by the decision engine.
type ParsedPrompt struct {
	// Intent is the classified change kind, defaulting to build.
	Intent Intent `json:"intent"`
	// Features lists the distinct capabilities the request asks for.
	Features []string `json:"features,omitempty"`
	// FeatureDetails carries supporting detail lines per feature.
	FeatureDetails []string `json:"feature_details,omitempty"`
	// Constraints lists restrictions the request imposes.
	Constraints []string `json:"constraints,omitempty"`
	// Technologies lists technology keywords found in the request.
	Technologies []string `json:"technologies,omitempty"`
	// RawLength is the length of the original request text in runes.
	RawLength int `json:"raw_length"`
}

// PlanDecision is the outcome of a plan-tier decision. Produced once per
// planning request and immutable afterwards.
type PlanDecision struct {
	// PlanType is the chosen tier.
	PlanType PlanType `json:"plan_type"`
	// Score is the weighted score that produced the choice, never negative.
	Score float64 `json:"score"`
	// Confidence is the margin-derived certainty in [0,1].
	Confidence float64 `json:"confidence"`
	// Reasoning holds human-readable lines explaining the choice.
	Reasoning []string `json:"reasoning,omitempty"`
	// Overridden is true when an explicit override chose the tier.
	Overridden bool `json:"overridden"`
}
