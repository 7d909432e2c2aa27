package models

import "time"

// BudgetStatus represents how much headroom an allocation has left.
type BudgetStatus string

const (
	// BudgetAvailable indicates normal headroom.
	BudgetAvailable BudgetStatus = "available"
	// BudgetLow indicates usage has crossed the compaction threshold.
	BudgetLow BudgetStatus = "low"
	// BudgetExhausted indicates no headroom remains.
	BudgetExhausted BudgetStatus = "exhausted"
	// BudgetExceeded indicates usage has passed the allocation.
	BudgetExceeded BudgetStatus = "exceeded"
)

// Valid returns true if the status is a known value.
func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetAvailable, BudgetLow, BudgetExhausted, BudgetExceeded:
		return true
	default:
		return false
	}
}

// BudgetAllocation is one child's slice of a parent budget.
// Available is always Allocated minus Used.
type BudgetAllocation struct {
	// Allocated is the amount granted to the child.
	Allocated int64 `yaml:"allocated" json:"allocated"`
	// Used is the amount the child has consumed so far.
	Used int64 `yaml:"used" json:"used"`
	// Available is the remaining headroom, possibly negative on overrun.
	Available int64 `yaml:"available" json:"available"`
	// Status is derived from Used and Allocated on every update.
	Status BudgetStatus `yaml:"status" json:"status"`
}

// UsageRecord is one immutable entry of a budget's usage history.
// History is append-only; records are never rewritten.
type UsageRecord struct {
	// Timestamp is when the usage was recorded.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// ChildID names the allocation the usage was charged to.
	ChildID string `yaml:"child_id" json:"child_id"`
	// Delta is the usage added by this record.
	Delta int64 `yaml:"delta" json:"delta"`
	// Total is the child's running usage total after Delta.
	Total int64 `yaml:"total" json:"total"`
}

// BudgetState is the persisted budget of one parent node over its direct
// children. Deeper hierarchies nest one BudgetState per level.
// Invariant, preserved by every operation:
// Available + sum of child Allocated == Total.
type BudgetState struct {
	// Total is the pool size granted to the parent.
	Total int64 `yaml:"total" json:"total"`
	// Available is the unallocated remainder of the pool.
	Available int64 `yaml:"available" json:"available"`
	// CompactionThreshold is the used/allocated ratio at which an
	// allocation turns low. Zero means the 0.8 default.
	CompactionThreshold float64 `yaml:"compaction_threshold,omitempty" json:"compaction_threshold,omitempty"`
	// ReallocationEnabled permits moving capacity between siblings.
	ReallocationEnabled bool `yaml:"reallocation_enabled" json:"reallocation_enabled"`
	// Allocations maps child ID to its allocation.
	Allocations map[string]*BudgetAllocation `yaml:"allocations,omitempty" json:"allocations,omitempty"`
	// History is the append-only usage log.
	History []UsageRecord `yaml:"history,omitempty" json:"history,omitempty"`
}
