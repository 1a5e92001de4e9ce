package plannerloop

import (
	"sync"

	"ldprm/internal/geo"
)

// Mailbox is the instance-owned goal handoff between the service handler
// and the PlannerLoop thread: a mutex-guarded pending goal plus a
// condition variable, signalled exactly once per SetGoal/Shutdown call
// (spec.md §5: "current_goal: guarded by a mutex and a condition
// variable; the handler signals exactly one waiter").
//
// Grounded on original_source/src/simulator.cpp's module-scope
// GoalProcess/WaitOnGoal/GoalRecieved trio, rebuilt as an instance field
// per spec.md §9's design note that the original's globals don't survive
// more than one planner instance.
type Mailbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  *geo.WorldOrd
	shutdown bool
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// SetGoal records g as the pending goal, overwriting whatever goal was
// already pending (spec.md §5: "any goal received while Planning is
// pending overwrites the previous pending goal"), and wakes the loop.
func (m *Mailbox) SetGoal(g geo.WorldOrd) {
	m.mu.Lock()
	gCopy := g
	m.pending = &gCopy
	m.mu.Unlock()
	m.cond.Signal()
}

// Shutdown requests the loop exit at its next wait point.
func (m *Mailbox) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// wait blocks until a goal is pending or shutdown has been requested. It
// does not consume the pending goal, so Planning can re-observe it after
// a build completes without racing a fresh SetGoal against a fresh wait.
func (m *Mailbox) wait() {
	m.mu.Lock()
	for m.pending == nil && !m.shutdown {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// takeGoal atomically reads and clears the pending goal.
func (m *Mailbox) takeGoal() (geo.WorldOrd, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return geo.WorldOrd{}, false
	}
	g := *m.pending
	m.pending = nil
	return g, true
}

func (m *Mailbox) isShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}
