package grid

import (
	"testing"

	"ldprm/internal/geo"
)

func allFree(width, height int) []byte {
	cells := make([]byte, width*height)
	for i := range cells {
		cells[i] = 255
	}
	return cells
}

func TestWorldToCellRoundTrip(t *testing.T) {
	g := New(40, 40, 0.1, geo.NewWorldOrd(0, 0), allFree(40, 40))

	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			c := geo.Cell{Col: col, Row: row}
			got := g.WorldToCell(g.CellToWorld(c))
			if got != c {
				t.Fatalf("round trip mismatch for cell %+v: got %+v", c, got)
			}
		}
	}
}

func TestIsFreeRejectsOutOfBounds(t *testing.T) {
	g := New(10, 10, 0.1, geo.NewWorldOrd(0, 0), allFree(10, 10))

	if g.IsFree(geo.Cell{Col: -1, Row: 0}) {
		t.Fatalf("expected out-of-bounds cell to be occupied")
	}
	if g.IsFree(geo.Cell{Col: 10, Row: 0}) {
		t.Fatalf("expected out-of-bounds cell to be occupied")
	}
	if !g.IsFree(geo.Cell{Col: 5, Row: 5}) {
		t.Fatalf("expected in-bounds free cell to be free")
	}
}

func TestIsFreeThreshold(t *testing.T) {
	cells := allFree(1, 1)
	cells[0] = FreeThreshold
	g := New(1, 1, 0.1, geo.NewWorldOrd(0, 0), cells)
	if g.IsFree(geo.Cell{Col: 0, Row: 0}) {
		t.Fatalf("value equal to threshold must not be free")
	}
}

func TestExpandCSpaceIdempotent(t *testing.T) {
	cells := allFree(20, 20)
	cells[10*20+10] = 0 // a single occupied cell in the middle
	g := New(20, 20, 0.1, geo.NewWorldOrd(0, 0), cells)

	once := g.ExpandCSpace(0.2)
	twice := once.ExpandCSpace(0.2)

	if len(once.cells) != len(twice.cells) {
		t.Fatalf("length mismatch after second expansion")
	}
	for i := range once.cells {
		if once.cells[i] != twice.cells[i] {
			t.Fatalf("cell %d differs after re-expansion: %d vs %d", i, once.cells[i], twice.cells[i])
		}
	}
}

func TestExpandCSpaceGrowsOccupiedRegion(t *testing.T) {
	cells := allFree(20, 20)
	cells[10*20+10] = 0
	g := New(20, 20, 0.1, geo.NewWorldOrd(0, 0), cells)

	expanded := g.ExpandCSpace(0.2) // k = ceil(0.2/(2*0.1)) = 1

	if expanded.IsFree(geo.Cell{Col: 10, Row: 10}) {
		t.Fatalf("origin occupied cell must remain occupied")
	}
	if expanded.IsFree(geo.Cell{Col: 11, Row: 10}) {
		t.Fatalf("neighbour cell must be dilated into occupied space")
	}
	if !expanded.IsFree(geo.Cell{Col: 13, Row: 10}) {
		t.Fatalf("cell beyond the dilation radius must remain free")
	}
}

func TestCanConnectStraightLine(t *testing.T) {
	g := New(40, 40, 0.1, geo.NewWorldOrd(0, 0), allFree(40, 40))
	a := g.WorldToCell(geo.NewWorldOrd(0, 0))
	b := g.WorldToCell(geo.NewWorldOrd(1.0, 1.0))

	if !g.CanConnect(a, b) {
		t.Fatalf("expected clear line of sight across an all-free grid")
	}
}

func TestCanConnectBlockedByWall(t *testing.T) {
	cells := allFree(40, 40)
	for row := 5; row < 35; row++ {
		cells[row*40+20] = 0
	}
	g := New(40, 40, 0.1, geo.NewWorldOrd(0, 0), cells)

	a := g.WorldToCell(geo.NewWorldOrd(-1.0, 0))
	b := g.WorldToCell(geo.NewWorldOrd(1.0, 0))

	if g.CanConnect(a, b) {
		t.Fatalf("expected the wall to block the direct line of sight")
	}
}
