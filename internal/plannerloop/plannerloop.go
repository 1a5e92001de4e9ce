// Package plannerloop implements the single-thread planner state machine
// (spec.md §4.5, component C5): WaitingForWorld -> Idle -> Planning -> Idle
// ..., with goal coalescing and a bounded retry policy.
//
// Grounded on original_source/src/simulator.cpp's prmThread (the startup
// wait, the condition-variable goal wait, the retry-up-to-3 loop, and the
// overlay-always/path-conditional publish order), adapted into an
// instance-owned Mailbox (see mailbox.go) in place of the original's
// module-scope mutex/condvar globals.
package plannerloop

import (
	"context"
	"image"
	"log"
	"sync"
	"time"

	"ldprm/internal/geo"
	"ldprm/internal/grid"
	"ldprm/internal/worldbuffer"
)

// State is one position in the C5 state machine.
type State int

const (
	WaitingForWorld State = iota
	Idle
	Planning
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case WaitingForWorld:
		return "WaitingForWorld"
	case Idle:
		return "Idle"
	case Planning:
		return "Planning"
	case ShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}

// builder is the subset of *roadmap.Roadmap the loop depends on, kept as
// an interface so tests can substitute a stub without a real grid/graph.
type builder interface {
	SetReference(ref geo.WorldOrd)
	Build(ctx context.Context, m *grid.Grid, start, goal geo.WorldOrd) []geo.WorldOrd
	Overlay(base image.Image, cspace *grid.Grid, path []geo.WorldOrd) image.Image
}

// PlannerLoop owns the world buffer, the roadmap builder, and the goal
// mailbox, and is the sole caller of roadmap/graph operations (spec.md §5:
// "PlannerLoop thread: sole reader of roadmap state").
type PlannerLoop struct {
	wb         *worldbuffer.WorldBuffer
	rm         builder
	mailbox    *Mailbox
	maxRetries int

	// PublishOverlay is called with the composed overlay image once per
	// planning cycle, after the retry loop, whether or not a path was found
	// (spec.md §4.5: "publish overlay (always)"). It is not called when no
	// grid has been received yet.
	PublishOverlay func(image.Image)
	// PublishPath is called only when a build produced a non-empty path
	// (spec.md §4.5: "waypoints (only if non-empty)"). z is passed through
	// from the last known pose untouched.
	PublishPath func(path []geo.WorldOrd, z float64)

	mu       sync.Mutex
	state    State
	lastGrid *grid.Grid
	lastPose worldbuffer.Pose
}

// New wires a PlannerLoop around wb and rm. maxRetries<=0 falls back to 3
// (spec.md §4.5 default retry count).
func New(wb *worldbuffer.WorldBuffer, rm builder, maxRetries int) *PlannerLoop {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &PlannerLoop{
		wb:         wb,
		rm:         rm,
		mailbox:    NewMailbox(),
		maxRetries: maxRetries,
	}
}

// RequestGoal is the external entry point the goal service calls; it never
// fails (spec.md §6: goal_request always acknowledges, even for an
// eventually-inaccessible goal — the failure surfaces later via an empty
// published path).
func (p *PlannerLoop) RequestGoal(g geo.WorldOrd) {
	p.mailbox.SetGoal(g)
}

// Shutdown requests the loop exit at its next wait point.
func (p *PlannerLoop) Shutdown() {
	p.mailbox.Shutdown()
}

// State reports the loop's current state, safe to call from another
// goroutine (used by diagnostics and tests).
func (p *PlannerLoop) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PlannerLoop) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run drives the state machine until shutdown, either requested directly
// via Shutdown or by cancelling ctx. It blocks the calling goroutine.
func (p *PlannerLoop) Run(ctx context.Context) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.mailbox.Shutdown()
		case <-stop:
		}
	}()

	p.setState(WaitingForWorld)
	for !p.wb.HasBoth() {
		if p.mailbox.isShuttingDown() {
			p.setState(ShuttingDown)
			return
		}
		time.Sleep(time.Millisecond)
	}
	log.Println("ℹ️  ready to receive goal requests")

	for {
		p.setState(Idle)
		p.mailbox.wait()
		if p.mailbox.isShuttingDown() {
			p.setState(ShuttingDown)
			return
		}

		goal, ok := p.mailbox.takeGoal()
		if !ok {
			continue
		}

		for {
			p.setState(Planning)
			p.plan(ctx, goal)

			next, ok := p.mailbox.takeGoal()
			if !ok {
				break
			}
			goal = next
		}
	}
}

func (p *PlannerLoop) plan(ctx context.Context, goal geo.WorldOrd) {
	if g, gridOK, pose, poseOK := p.wb.TryPopLatest(); gridOK || poseOK {
		if gridOK {
			p.lastGrid = g
		}
		if poseOK {
			p.lastPose = pose
		}
	}

	if p.lastGrid == nil {
		log.Println("❌ empty grid, skipping build")
		return
	}

	p.rm.SetReference(p.lastPose.Position)
	log.Printf("🔍 starting build: {%.2f, %.2f} to {%.2f, %.2f}\n",
		p.lastPose.Position.X(), p.lastPose.Position.Y(), goal.X(), goal.Y())

	var path []geo.WorldOrd
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		path = p.rm.Build(ctx, p.lastGrid, p.lastPose.Position, goal)
		if len(path) > 0 {
			break
		}
		if attempt < p.maxRetries {
			log.Printf("⚠️  path find failed, trying again. Attempt: %d\n", attempt+1)
		}
	}
	if len(path) == 0 {
		log.Println("❌ cannot reach goal")
	}

	if p.PublishOverlay != nil {
		overlay := p.rm.Overlay(p.lastGrid.ToImage(), p.lastGrid, path)
		p.PublishOverlay(overlay)
		log.Println("🗺️  sent prm overlay")
	}

	if len(path) > 0 && p.PublishPath != nil {
		p.PublishPath(path, p.lastPose.Z)
		log.Println("✅ sent path")
	}
}
