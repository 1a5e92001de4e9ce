// Package worldbuffer implements the bounded, mutex-guarded grid/pose
// buffers producers push into and the planner drains from (spec.md §4.4,
// component C4).
//
// Grounded on original_source/src/simulator.h/.cpp: TDataContainer/
// TWorldDataBuffer's mutex-guarded access and waitForWorldData/
// consumeWorldData, re-expressed in the idiom of
// banshee-data-velocity.report/internal/serialmux's SerialMux — a small
// mutex per concern, no I/O performed under the lock.
package worldbuffer

import (
	"sync"

	"ldprm/internal/geo"
	"ldprm/internal/grid"
)

// Pose is a robot pose pushed by an external localisation producer
// (spec.md §6: grid_stream/pose_stream).
type Pose struct {
	Position geo.WorldOrd
	Z        float64 // passed through untouched; the planner works in 2D
}

// WorldBuffer holds the latest occupancy grid and the latest pose, each
// behind its own mutex. push_grid/push_pose coalesce by keeping only the
// most recent value — the planner only ever consumes the front (spec.md
// §4.4 discipline: producers never block on consumers).
type WorldBuffer struct {
	gridMu  sync.Mutex
	grid    *grid.Grid
	hasGrid bool

	poseMu  sync.Mutex
	pose    Pose
	hasPose bool
}

// New returns an empty WorldBuffer.
func New() *WorldBuffer {
	return &WorldBuffer{}
}

// PushGrid replaces the buffered grid with g, dropping whatever was there
// (drop-oldest policy; spec.md §4.4 push_grid).
func (b *WorldBuffer) PushGrid(g *grid.Grid) {
	b.gridMu.Lock()
	defer b.gridMu.Unlock()
	b.grid = g
	b.hasGrid = true
}

// PushPose replaces the buffered pose with p (spec.md §4.4 push_pose).
func (b *WorldBuffer) PushPose(p Pose) {
	b.poseMu.Lock()
	defer b.poseMu.Unlock()
	b.pose = p
	b.hasPose = true
}

// TryPopLatest takes the front of each sequence, if present, leaving the
// buffer empty on that side afterward. A missing side reports ok=false for
// that side independently (spec.md §4.4 try_pop_latest).
func (b *WorldBuffer) TryPopLatest() (g *grid.Grid, gridOK bool, p Pose, poseOK bool) {
	b.gridMu.Lock()
	if b.hasGrid {
		g, gridOK = b.grid, true
		b.grid, b.hasGrid = nil, false
	}
	b.gridMu.Unlock()

	b.poseMu.Lock()
	if b.hasPose {
		p, poseOK = b.pose, true
		b.hasPose = false
	}
	b.poseMu.Unlock()

	return g, gridOK, p, poseOK
}

// HasBoth reports whether a grid and a pose are both currently buffered,
// the predicate the startup wait spins on (spec.md §4.4 has_both,
// §4.5 WaitingForWorld).
func (b *WorldBuffer) HasBoth() bool {
	b.gridMu.Lock()
	hasGrid := b.hasGrid
	b.gridMu.Unlock()

	b.poseMu.Lock()
	hasPose := b.hasPose
	b.poseMu.Unlock()

	return hasGrid && hasPose
}
