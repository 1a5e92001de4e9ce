package plannerloop

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"ldprm/internal/geo"
	"ldprm/internal/grid"
	"ldprm/internal/worldbuffer"
)

type stubBuilder struct {
	mu        sync.Mutex
	calls     int
	buildFunc func(start, goal geo.WorldOrd) []geo.WorldOrd
}

func (s *stubBuilder) SetReference(ref geo.WorldOrd) {}

func (s *stubBuilder) Build(ctx context.Context, m *grid.Grid, start, goal geo.WorldOrd) []geo.WorldOrd {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.buildFunc != nil {
		return s.buildFunc(start, goal)
	}
	return nil
}

func (s *stubBuilder) Overlay(base image.Image, cspace *grid.Grid, path []geo.WorldOrd) image.Image {
	return base
}

func (s *stubBuilder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestRunWaitsForWorldBeforeIdle(t *testing.T) {
	wb := worldbuffer.New()
	pl := New(wb, &stubBuilder{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pl.Run(ctx)

	waitFor(t, time.Second, func() bool { return pl.State() == WaitingForWorld })

	wb.PushGrid(grid.New(1, 1, 0.1, geo.NewWorldOrd(0, 0), []byte{255}))
	wb.PushPose(worldbuffer.Pose{Position: geo.NewWorldOrd(0, 0)})

	waitFor(t, time.Second, func() bool { return pl.State() == Idle })
}

func TestGoalTriggersPlanningAndPublishes(t *testing.T) {
	wb := worldbuffer.New()
	wb.PushGrid(grid.New(1, 1, 0.1, geo.NewWorldOrd(0, 0), []byte{255}))
	wb.PushPose(worldbuffer.Pose{Position: geo.NewWorldOrd(0, 0), Z: 1.5})

	wantPath := []geo.WorldOrd{geo.NewWorldOrd(0, 0), geo.NewWorldOrd(1, 0)}
	sb := &stubBuilder{buildFunc: func(start, goal geo.WorldOrd) []geo.WorldOrd { return wantPath }}

	pl := New(wb, sb, 1)

	var mu sync.Mutex
	var overlayCalls, pathCalls int
	var gotZ float64
	pl.PublishOverlay = func(image.Image) {
		mu.Lock()
		overlayCalls++
		mu.Unlock()
	}
	pl.PublishPath = func(path []geo.WorldOrd, z float64) {
		mu.Lock()
		pathCalls++
		gotZ = z
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pl.Run(ctx)

	waitFor(t, time.Second, func() bool { return pl.State() == Idle })
	pl.RequestGoal(geo.NewWorldOrd(1, 0))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return pathCalls == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if overlayCalls != 1 {
		t.Fatalf("expected overlay to publish exactly once, got %d", overlayCalls)
	}
	if gotZ != 1.5 {
		t.Fatalf("expected the pose's z to pass through untouched, got %v", gotZ)
	}
}

func TestPublishPathSkippedWhenBuildFails(t *testing.T) {
	wb := worldbuffer.New()
	wb.PushGrid(grid.New(1, 1, 0.1, geo.NewWorldOrd(0, 0), []byte{255}))
	wb.PushPose(worldbuffer.Pose{Position: geo.NewWorldOrd(0, 0)})

	sb := &stubBuilder{buildFunc: func(start, goal geo.WorldOrd) []geo.WorldOrd { return nil }}
	pl := New(wb, sb, 2)

	var mu sync.Mutex
	overlayCalls, pathCalls := 0, 0
	pl.PublishOverlay = func(image.Image) {
		mu.Lock()
		overlayCalls++
		mu.Unlock()
	}
	pl.PublishPath = func(path []geo.WorldOrd, z float64) {
		mu.Lock()
		pathCalls++
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pl.Run(ctx)

	waitFor(t, time.Second, func() bool { return pl.State() == Idle })
	pl.RequestGoal(geo.NewWorldOrd(1, 0))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return overlayCalls == 1
	})

	// give any erroneous path publish a chance to land before asserting
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if pathCalls != 0 {
		t.Fatalf("expected no path to be published for a failed build, got %d calls", pathCalls)
	}
	if sb.callCount() != 2 {
		t.Fatalf("expected exactly MaxRetries build attempts, got %d", sb.callCount())
	}
}

// Coalescing (spec.md §5): a goal received while Planning updates the
// pending goal without preempting the in-flight build; once that build
// completes, the loop re-enters Planning immediately with the newer goal.
func TestCoalescingDuringPlanning(t *testing.T) {
	wb := worldbuffer.New()
	wb.PushGrid(grid.New(1, 1, 0.1, geo.NewWorldOrd(0, 0), []byte{255}))
	wb.PushPose(worldbuffer.Pose{Position: geo.NewWorldOrd(0, 0)})

	goal1 := geo.NewWorldOrd(1, 0)
	goal2 := geo.NewWorldOrd(2, 0)

	buildStarted := make(chan struct{}, 1)
	release := make(chan struct{})

	sb := &stubBuilder{}
	firstCall := true
	sb.buildFunc = func(start, goal geo.WorldOrd) []geo.WorldOrd {
		if firstCall {
			firstCall = false
			buildStarted <- struct{}{}
			<-release
		}
		return []geo.WorldOrd{start, goal}
	}

	pl := New(wb, sb, 1)

	var mu sync.Mutex
	var publishedGoals []geo.WorldOrd
	pl.PublishPath = func(path []geo.WorldOrd, z float64) {
		mu.Lock()
		publishedGoals = append(publishedGoals, path[len(path)-1])
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pl.Run(ctx)

	waitFor(t, time.Second, func() bool { return pl.State() == Idle })
	pl.RequestGoal(goal1)

	select {
	case <-buildStarted:
	case <-time.After(time.Second):
		t.Fatalf("first build never started")
	}

	pl.RequestGoal(goal2)
	close(release)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(publishedGoals) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	if !publishedGoals[0].Equal(goal1) {
		t.Fatalf("expected the first completed build to target goal1, got %v", publishedGoals[0])
	}
	if !publishedGoals[1].Equal(goal2) {
		t.Fatalf("expected the coalesced rebuild to target goal2, got %v", publishedGoals[1])
	}
}

func TestShutdownStopsLoop(t *testing.T) {
	wb := worldbuffer.New()
	pl := New(wb, &stubBuilder{}, 1)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		pl.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return pl.State() == WaitingForWorld })
	pl.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Shutdown")
	}
	if pl.State() != ShuttingDown {
		t.Fatalf("expected final state ShuttingDown, got %v", pl.State())
	}
}
