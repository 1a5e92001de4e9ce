// Package grid implements the rasterised occupancy grid: world<->cell
// mapping, free-space tests, C-space dilation, and Bresenham line-of-sight
// checks (spec.md §4.1, component C1).
//
// Grounded on original_source/src/globalmap.cpp (expandConfigSpace,
// isAccessible, canConnect, convertToPoint) — the teacher repo itself
// operates on lat/lon polygons and has no raster grid of its own.
package grid

import (
	"image"
	"math"

	"ldprm/internal/geo"
)

// FreeThreshold is the occupancy byte value above which a cell counts as
// known free space. Values at or below it are occupied or unknown and are
// rejected (spec.md §4.1: is_free).
const FreeThreshold byte = 127

// Grid is a greyscale raster occupancy grid. Cells are row-major, one byte
// per cell: values near 255 mean known free, values near 0 mean occupied,
// intermediate values mean unknown. A Grid is immutable once handed to the
// planner for one build cycle; ExpandCSpace returns a new logical grid
// rather than mutating the receiver in place (spec.md Data Model: Grid).
type Grid struct {
	Width, Height int
	Resolution    float64 // metres per cell
	Reference     geo.WorldOrd

	cells []byte

	expanded         bool
	expandedDiameter float64
}

// New builds a Grid from row-major occupancy bytes. len(cells) must equal
// width*height.
func New(width, height int, resolution float64, reference geo.WorldOrd, cells []byte) *Grid {
	buf := make([]byte, len(cells))
	copy(buf, cells)
	return &Grid{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Reference:  reference,
		cells:      buf,
	}
}

// WorldToCell converts a world ordinate to the pixel cell it falls in. The
// y-axis is inverted: positive world-y maps to smaller row indices
// (spec.md §4.1).
func (g *Grid) WorldToCell(p geo.WorldOrd) geo.Cell {
	col := math.Round((p.X()-g.Reference.X())/g.Resolution + float64(g.Width)/2)
	row := math.Round(float64(g.Height)/2 - (p.Y()-g.Reference.Y())/g.Resolution)
	return geo.Cell{Col: int(col), Row: int(row)}
}

// CellToWorld converts a pixel cell to the world ordinate of its centre; the
// inverse of WorldToCell.
func (g *Grid) CellToWorld(c geo.Cell) geo.WorldOrd {
	x := g.Reference.X() + (float64(c.Col)-float64(g.Width)/2)*g.Resolution
	y := g.Reference.Y() + (float64(g.Height)/2-float64(c.Row))*g.Resolution
	return geo.NewWorldOrd(x, y)
}

func (g *Grid) inBounds(c geo.Cell) bool {
	return c.Col >= 0 && c.Col < g.Width && c.Row >= 0 && c.Row < g.Height
}

// IsFree reports whether a cell is inside bounds and known free (strictly
// above FreeThreshold). Out-of-bounds cells are never free.
func (g *Grid) IsFree(c geo.Cell) bool {
	if !g.inBounds(c) {
		return false
	}
	return g.cells[c.Row*g.Width+c.Col] > FreeThreshold
}

// ExpandCSpace dilates occupied (non-free) regions outward by
// ceil(robotDiameterM / (2*resolution)) cells using a square structuring
// element, so the robot can be treated as a point. A second call with the
// same diameter on the grid this call returned is a no-op and returns the
// same value, satisfying the idempotence invariant (spec.md §8, property 4)
// without re-hashing grid content — the result of one expansion simply
// remembers the diameter it was expanded by (see spec.md §9 design notes on
// caching the dilated grid).
func (g *Grid) ExpandCSpace(robotDiameterM float64) *Grid {
	if g.expanded && g.expandedDiameter == robotDiameterM {
		return g
	}

	k := int(math.Ceil(robotDiameterM / (2 * g.Resolution)))
	out := make([]byte, len(g.cells))
	copy(out, g.cells)

	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if g.cells[row*g.Width+col] > FreeThreshold {
				continue
			}
			for dr := -k; dr <= k; dr++ {
				r := row + dr
				if r < 0 || r >= g.Height {
					continue
				}
				for dc := -k; dc <= k; dc++ {
					c := col + dc
					if c < 0 || c >= g.Width {
						continue
					}
					out[r*g.Width+c] = 0
				}
			}
		}
	}

	return &Grid{
		Width:            g.Width,
		Height:           g.Height,
		Resolution:       g.Resolution,
		Reference:        g.Reference,
		cells:            out,
		expanded:         true,
		expandedDiameter: robotDiameterM,
	}
}

// CanConnect rasterises the segment a->b with Bresenham's algorithm and
// reports whether every visited cell is free. Cost is linear in segment
// length (spec.md §4.1).
func (g *Grid) CanConnect(a, b geo.Cell) bool {
	x0, y0 := a.Col, a.Row
	x1, y1 := b.Col, b.Row

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := sign(x1 - x0)
	sy := sign(y1 - y0)
	err := dx + dy

	x, y := x0, y0
	for {
		if !g.IsFree(geo.Cell{Col: x, Row: y}) {
			return false
		}
		if x == x1 && y == y1 {
			return true
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// ToImage renders the occupancy bytes as a greyscale image, the base the
// overlay is drawn onto; the overlay's drawing context makes its own colour
// copy of it (original_source/src/simulator.cpp:
// cv::cvtColor(ogMap, colourMap, CV_GRAY2BGR)).
func (g *Grid) ToImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	copy(img.Pix, g.cells)
	return img
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
