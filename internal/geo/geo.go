// Package geo holds the coordinate types shared by the grid, graph, and
// roadmap components: a point in the robot's world frame, and the integer
// pixel cell it maps to inside a raster occupancy grid.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// WorldOrd is a point in the robot's global frame, in metres, double
// precision. Backed by orb.Point so distance and future geometry helpers
// (bounding boxes, line strings) come from the pack's own geometry library
// rather than a hand-rolled {x,y} pair.
type WorldOrd orb.Point

// NewWorldOrd builds a WorldOrd from raw x/y metres.
func NewWorldOrd(x, y float64) WorldOrd {
	return WorldOrd{x, y}
}

func (w WorldOrd) X() float64 { return w[0] }
func (w WorldOrd) Y() float64 { return w[1] }

// Point returns the orb.Point backing this ordinate.
func (w WorldOrd) Point() orb.Point { return orb.Point(w) }

// Rounded rounds both ordinates to one decimal place, the convention the
// sampler uses when it mints a new candidate ordinate (spec.md Data Model:
// WorldOrd).
func (w WorldOrd) Rounded() WorldOrd {
	return WorldOrd{math.Round(w[0]*10) / 10, math.Round(w[1]*10) / 10}
}

// Equal reports whether two ordinates are exactly equal. find_or_add uses
// this to match a freshly rounded sample against the existing network
// (original_source/src/globalmap.cpp: GlobalMap::existsAsVertex compares
// ord.x == v.second.x && ord.y == v.second.y).
func (w WorldOrd) Equal(o WorldOrd) bool {
	return w[0] == o[0] && w[1] == o[1]
}

// Distance returns the Euclidean distance between two ordinates in metres.
func Distance(a, b WorldOrd) float64 {
	return planar.Distance(a.Point(), b.Point())
}

// Cell is an integer pixel coordinate {col, row} in a grid image.
type Cell struct {
	Col, Row int
}
