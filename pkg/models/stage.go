package models

import "time"

// Stage represents one state of the orchestration state machine.
type Stage string

const (
	// StageInitialization loads state and acquires the run.
	StageInitialization Stage = "initialization"
	// StageAnalysis classifies the request and estimates complexity.
	StageAnalysis Stage = "analysis"
	// StageArchitecture resolves dependencies and structure.
	StageArchitecture Stage = "architecture"
	// StagePlanning materializes the hierarchy and allocates budget.
	StagePlanning Stage = "planning"
	// StageSecurity evaluates security gates before execution.
	StageSecurity Stage = "security"
	// StageExecution runs the hierarchy's phase plans sequentially.
	StageExecution Stage = "execution"
	// StageValidation runs post-execution gates and tests.
	StageValidation Stage = "validation"
	// StageCompletion is the terminal success state.
	StageCompletion Stage = "completion"
	// StageFailed is the terminal failure state.
	StageFailed Stage = "failed"
	// StagePaused is a suspended state that can resume.
	StagePaused Stage = "paused"
)

// Valid returns true if the stage is a known value.
func (s Stage) Valid() bool {
	switch s {
	case StageInitialization, StageAnalysis, StageArchitecture, StagePlanning,
		StageSecurity, StageExecution, StageValidation, StageCompletion,
		StageFailed, StagePaused:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions leave the stage.
func (s Stage) Terminal() bool {
	return s == StageCompletion || s == StageFailed
}

// StageTransition records one state machine transition for audit and
// resume.
type StageTransition struct {
	// From is the stage the machine left.
	From Stage `json:"from"`
	// To is the stage the machine entered.
	To Stage `json:"to"`
	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// StageResult captures the outcome of running one stage, including any
// collaborator errors, which are attached rather than thrown.
type StageResult struct {
	// Stage names the stage that ran.
	Stage Stage `json:"stage"`
	// Passed is false when the stage blocked progression.
	Passed bool `json:"passed"`
	// Gates holds the gate results evaluated at the stage boundary.
	Gates []GateResult `json:"gates,omitempty"`
	// Detail is a human-readable summary line.
	Detail string `json:"detail,omitempty"`
	// Err holds a collaborator error message, if one occurred.
	Err string `json:"error,omitempty"`
	// Skipped is true when the stage had no collaborator configured.
	Skipped bool `json:"skipped,omitempty"`
}
