package orchestrator

import (
	"context"
	"log"
	"sync"
)

// PauseController coordinates in-process pause, resume and stop for a
// running orchestrator. The execution walk checks it between plans, so
// a pause never interrupts an agent exchange in flight.
type PauseController struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool
}

// NewPauseController creates a controller in the running state.
func NewPauseController() *PauseController {
	pc := &PauseController{}
	pc.cond = sync.NewCond(&pc.mu)
	return pc
}

// Pause requests that the walk hold at the next plan boundary.
func (pc *PauseController) Pause() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.paused || pc.stopped {
		return
	}
	pc.paused = true
	log.Printf("[orchestrator] pause requested")
}

// Resume releases a paused walk.
func (pc *PauseController) Resume() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if !pc.paused {
		return
	}
	pc.paused = false
	pc.cond.Broadcast()
	log.Printf("[orchestrator] resumed")
}

// Stop aborts the run at the next plan boundary. It wakes any waiter.
func (pc *PauseController) Stop() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.stopped {
		return
	}
	pc.stopped = true
	pc.cond.Broadcast()
	log.Printf("[orchestrator] stop requested")
}

// IsPaused reports whether a pause is in effect.
func (pc *PauseController) IsPaused() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.paused
}

// IsStopped reports whether the controller was stopped.
func (pc *PauseController) IsStopped() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stopped
}

// WaitIfPaused blocks while the controller is paused. It returns
// ErrRunStopped if the run was stopped while waiting, or the context
// error if ctx ended first.
func (pc *PauseController) WaitIfPaused(ctx context.Context) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for pc.paused && !pc.stopped {
		woke := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				pc.cond.Broadcast()
			case <-woke:
			}
		}()
		pc.cond.Wait()
		close(woke)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if pc.stopped {
		return ErrRunStopped
	}
	return nil
}
