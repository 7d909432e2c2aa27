// Package budget implements top-down token budget management for one
// hierarchy level: a parent pool allocated across direct children, with
// usage tracking, sibling reallocation, and release of unused capacity.
// Deeper trees nest one Manager per level.
package budget

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cairnhq/cairn/pkg/models"
)

// DefaultCompactionThreshold is the used/allocated ratio at which an
// allocation is reported low.
const DefaultCompactionThreshold = 0.80

var (
	// ErrNonPositiveAmount is returned when an operation is given a zero
	// or negative amount.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInsufficientBudget is returned when a pool or allocation lacks
	// the requested capacity.
	ErrInsufficientBudget = errors.New("insufficient available budget")
	// ErrDuplicateAllocation is returned when a child already holds an
	// allocation. Existing allocations are never silently overwritten.
	ErrDuplicateAllocation = errors.New("child already has an allocation")
	// ErrNoAllocation is returned when a child has no allocation.
	ErrNoAllocation = errors.New("child has no allocation")
	// ErrReallocationDisabled is returned when the parent forbids moving
	// capacity between siblings.
	ErrReallocationDisabled = errors.New("reallocation is disabled on this budget")
)

// Manager guards one parent budget. It can wrap a BudgetState loaded
// from a node file; every mutation applies to that state, so the caller
// persists the same state object after each operation.
//
// Invariant preserved by every operation:
// state.Available + sum of child Allocated == state.Total.
type Manager struct {
	state *models.BudgetState
	now   func() time.Time
	mu    sync.Mutex
}

// NewManager creates a Manager over a fresh pool of the given size.
// Reallocation between siblings starts enabled.
func NewManager(total int64) *Manager {
	return Wrap(&models.BudgetState{
		Total:               total,
		Available:           total,
		ReallocationEnabled: true,
	})
}

// Wrap returns a Manager over an existing state. A nil state gets an
// empty zero-total pool so callers never dereference nil.
func Wrap(state *models.BudgetState) *Manager {
	if state == nil {
		state = &models.BudgetState{}
	}
	if state.Allocations == nil {
		state.Allocations = make(map[string]*models.BudgetAllocation)
	}
	return &Manager{
		state: state,
		now:   time.Now,
	}
}

// Allocate grants amount to childID out of the parent pool. It fails on
// a non-positive amount, on insufficient parent capacity, and when the
// child already holds an allocation.
func (m *Manager) Allocate(childID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.allocateLocked(childID, amount)
}

// allocateLocked implements Allocate. Must be called with lock held.
func (m *Manager) allocateLocked(childID string, amount int64) error {
	if childID == "" {
		return errors.New("allocate: child id is required")
	}
	if amount <= 0 {
		return fmt.Errorf("allocate %s: %w", childID, ErrNonPositiveAmount)
	}
	if _, exists := m.state.Allocations[childID]; exists {
		return fmt.Errorf("allocate %s: %w", childID, ErrDuplicateAllocation)
	}
	if m.state.Available < amount {
		return fmt.Errorf("allocate %s: %w: have %d, need %d",
			childID, ErrInsufficientBudget, m.state.Available, amount)
	}

	m.state.Available -= amount
	m.state.Allocations[childID] = &models.BudgetAllocation{
		Allocated: amount,
		Available: amount,
		Status:    models.BudgetAvailable,
	}
	return nil
}

// TrackUsage charges a usage delta to childID, recomputes the child's
// available headroom and status, and appends an immutable record to the
// usage history. History is append-only and never rewritten.
func (m *Manager) TrackUsage(childID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[childID]
	if !ok {
		return fmt.Errorf("track usage %s: %w", childID, ErrNoAllocation)
	}
	if delta < 0 {
		return fmt.Errorf("track usage %s: delta must not be negative", childID)
	}

	alloc.Used += delta
	alloc.Available = alloc.Allocated - alloc.Used
	alloc.Status = m.statusLocked(alloc)

	m.state.History = append(m.state.History, models.UsageRecord{
		Timestamp: m.now(),
		ChildID:   childID,
		Delta:     delta,
		Total:     alloc.Used,
	})
	return nil
}

// Reallocate moves unused capacity from one sibling to another. Both
// children must hold allocations, the parent must permit reallocation,
// and the source must have the capacity available.
func (m *Manager) Reallocate(from, to string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.ReallocationEnabled {
		return fmt.Errorf("reallocate %s to %s: %w", from, to, ErrReallocationDisabled)
	}
	if amount <= 0 {
		return fmt.Errorf("reallocate %s to %s: %w", from, to, ErrNonPositiveAmount)
	}
	src, ok := m.state.Allocations[from]
	if !ok {
		return fmt.Errorf("reallocate from %s: %w", from, ErrNoAllocation)
	}
	dst, ok := m.state.Allocations[to]
	if !ok {
		return fmt.Errorf("reallocate to %s: %w", to, ErrNoAllocation)
	}
	if src.Available < amount {
		return fmt.Errorf("reallocate %s to %s: %w: have %d, need %d",
			from, to, ErrInsufficientBudget, src.Available, amount)
	}

	src.Allocated -= amount
	src.Available = src.Allocated - src.Used
	src.Status = m.statusLocked(src)

	dst.Allocated += amount
	dst.Available = dst.Allocated - dst.Used
	dst.Status = m.statusLocked(dst)
	return nil
}

// Release returns a child's unused headroom to the parent pool and
// clamps the child's allocation down to what it actually used. The
// released amount is never negative, and the parent total never
// changes. A child that overran its allocation releases nothing.
func (m *Manager) Release(childID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[childID]
	if !ok {
		return 0, fmt.Errorf("release %s: %w", childID, ErrNoAllocation)
	}

	released := alloc.Available
	if released < 0 {
		released = 0
	}
	alloc.Allocated -= released
	alloc.Available = alloc.Allocated - alloc.Used
	alloc.Status = m.statusLocked(alloc)
	m.state.Available += released
	return released, nil
}

// Status returns the derived status of one child's allocation.
func (m *Manager) Status(childID string) (models.BudgetStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[childID]
	if !ok {
		return "", fmt.Errorf("status %s: %w", childID, ErrNoAllocation)
	}
	return alloc.Status, nil
}

// Allocation returns a copy of one child's allocation.
func (m *Manager) Allocation(childID string) (models.BudgetAllocation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[childID]
	if !ok {
		return models.BudgetAllocation{}, false
	}
	return *alloc, true
}

// Available returns the parent pool's unallocated remainder.
func (m *Manager) Available() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.Available
}

// Total returns the parent pool size.
func (m *Manager) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.Total
}

// History returns a copy of the append-only usage log.
func (m *Manager) History() []models.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.UsageRecord, len(m.state.History))
	copy(out, m.state.History)
	return out
}

// State exposes the wrapped state for persistence. Callers must go
// through Manager operations for mutation.
func (m *Manager) State() *models.BudgetState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// SplitEvenly allocates an equal share of the remaining pool to each
// child. Any indivisible remainder stays in the parent pool.
func (m *Manager) SplitEvenly(childIDs []string) error {
	if len(childIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	share := m.state.Available / int64(len(childIDs))
	if share <= 0 {
		return fmt.Errorf("split across %d children: %w", len(childIDs), ErrInsufficientBudget)
	}
	for _, id := range childIDs {
		if err := m.allocateLocked(id, share); err != nil {
			return err
		}
	}
	return nil
}

// Report is a point-in-time summary of one parent budget.
type Report struct {
	Total     int64
	Available int64
	Children  []ChildReport
}

// ChildReport summarizes one child allocation, sorted by child ID in
// the parent report.
type ChildReport struct {
	ChildID   string
	Allocated int64
	Used      int64
	Available int64
	Status    models.BudgetStatus
}

// Report summarizes the pool and every child allocation.
func (m *Manager) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := Report{
		Total:     m.state.Total,
		Available: m.state.Available,
	}

	ids := make([]string, 0, len(m.state.Allocations))
	for id := range m.state.Allocations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		alloc := m.state.Allocations[id]
		r.Children = append(r.Children, ChildReport{
			ChildID:   id,
			Allocated: alloc.Allocated,
			Used:      alloc.Used,
			Available: alloc.Available,
			Status:    alloc.Status,
		})
	}
	return r
}

// statusLocked derives an allocation's status. Evaluation order keeps
// every status reachable: an overrun is exceeded before it is
// exhausted, and exhaustion wins over the low-water warning.
func (m *Manager) statusLocked(alloc *models.BudgetAllocation) models.BudgetStatus {
	threshold := m.state.CompactionThreshold
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}

	switch {
	case alloc.Used > alloc.Allocated:
		return models.BudgetExceeded
	case alloc.Available <= 0:
		return models.BudgetExhausted
	case alloc.Allocated > 0 && float64(alloc.Used)/float64(alloc.Allocated) >= threshold:
		return models.BudgetLow
	default:
		return models.BudgetAvailable
	}
}
