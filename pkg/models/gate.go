package models

// GateResult is the outcome of one gate evaluated at a stage boundary.
// Transient: produced, consulted, and attached to the stage result.
type GateResult struct {
	// GateType names the gate that ran.
	GateType string `json:"gate_type"`
	// Passed is the gate's verdict.
	Passed bool `json:"passed"`
	// Details explains the verdict.
	Details string `json:"details,omitempty"`
	// Overridable is true when a manual override may waive a failure.
	Overridable bool `json:"overridable"`
}
