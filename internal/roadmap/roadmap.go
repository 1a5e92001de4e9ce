// Package roadmap implements the low-dispersion PRM (LD-PRM): a
// VertexId<->WorldOrd bijection over a graph.Graph, dispersion-gated
// sampling, incremental construction, and path optimisation (spec.md §4.3,
// component C3).
//
// Grounded on original_source/src/globalmap.cpp (GlobalMap::build,
// findOrAdd, connectToExistingNodes) for the algorithm shape, and the
// teacher's CreateGraphWithStartEnd (prm_graph.go) for its Go expression.
package roadmap

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/dhconnelly/rtreego"

	"ldprm/internal/config"
	"ldprm/internal/geo"
	"ldprm/internal/graph"
	"ldprm/internal/grid"
)

// vertexPoint wraps a network entry for rtree indexing (spec.md §9:
// neighbour candidate ordering). Grounded on the teacher's PolygonEntry
// (spatial_index.go), re-targeted from no-fly-zone polygons to roadmap
// vertex ordinates.
type vertexPoint struct {
	id  graph.VertexId
	ord geo.WorldOrd
}

// pointEpsilon gives each indexed vertex a non-degenerate bounding box;
// rtreego rejects zero-area rectangles.
const pointEpsilon = 1e-6

func (vp *vertexPoint) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(
		rtreego.Point{vp.ord.X() - pointEpsilon/2, vp.ord.Y() - pointEpsilon/2},
		[]float64{pointEpsilon, pointEpsilon},
	)
	return rect
}

// Roadmap holds the accumulated PRM: a weighted graph plus the bijective
// vertex<->ordinate table, indexed by an R-tree for dispersion checks and
// neighbour-candidate ordering (spec.md Data Model: Roadmap).
type Roadmap struct {
	g       *graph.Graph
	network map[graph.VertexId]geo.WorldOrd
	index   *rtreego.Rtree
	nextID  graph.VertexId

	reference     geo.WorldOrd
	mapSizeM      float64
	robotDiameter float64
	maxSamples    int
	dispersion    float64

	rng *rand.Rand
}

// New builds an empty Roadmap from cfg (zero fields are replaced via
// config.Config.WithDefaults) whose sampling window is centred at
// reference.
func New(cfg config.Config, reference geo.WorldOrd) *Roadmap {
	cfg = cfg.WithDefaults()
	return &Roadmap{
		g:             graph.New(cfg.Density, cfg.MaxEdgeLen),
		network:       make(map[graph.VertexId]geo.WorldOrd),
		index:         rtreego.NewTree(2, 5, 10),
		reference:     reference,
		mapSizeM:      cfg.MapSize,
		robotDiameter: cfg.RobotDiameter,
		maxSamples:    cfg.MaxSamples,
		dispersion:    cfg.DispersionRadius,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRandSource substitutes the sampler's random stream, so tests can drive
// a deterministic sequence (spec.md §9 design notes).
func (r *Roadmap) SetRandSource(src rand.Source) {
	r.rng = rand.New(src)
}

// SetReference updates the world-frame centre of the sampling window, so
// new samples are drawn around the robot between build cycles. Existing
// vertex ordinates are untouched. World<->cell conversions do not use this
// value: they use the Reference carried by the grid passed to Build
// (original_source/src/globalmap.cpp: GlobalMap::setReference is called
// once per goal with the latest robot pose).
func (r *Roadmap) SetReference(ref geo.WorldOrd) {
	r.reference = ref
}

// Graph exposes the underlying weighted graph for overlay composition and
// diagnostics.
func (r *Roadmap) Graph() *graph.Graph { return r.g }

// Network returns a copy of the vertex->ordinate table.
func (r *Roadmap) Network() map[graph.VertexId]geo.WorldOrd {
	out := make(map[graph.VertexId]geo.WorldOrd, len(r.network))
	for k, v := range r.network {
		out[k] = v
	}
	return out
}

// findOrAdd returns the existing vertex for p if one exists (bijection
// invariant R1), else mints a fresh VertexId, inserts it into the graph,
// the network table, and the spatial index. Bypasses the dispersion rule —
// used for start/goal only (spec.md R2).
func (r *Roadmap) findOrAdd(p geo.WorldOrd) graph.VertexId {
	for id, ord := range r.network {
		if ord.Equal(p) {
			return id
		}
	}

	id := r.nextID
	r.nextID++

	r.g.AddVertex(id)
	r.network[id] = p
	r.index.Insert(&vertexPoint{id: id, ord: p})
	return id
}

// violatesDispersion reports whether any existing vertex lies within
// radius of p (spec.md R2). Queries the R-tree for candidates in p's
// bounding square before falling back to exact distance checks.
func (r *Roadmap) violatesDispersion(p geo.WorldOrd, radius float64) bool {
	if len(r.network) == 0 || radius <= 0 {
		return false
	}

	rect, err := rtreego.NewRect(
		rtreego.Point{p.X() - radius, p.Y() - radius},
		[]float64{2 * radius, 2 * radius},
	)
	if err != nil {
		return false
	}

	for _, hit := range r.index.SearchIntersect(rect) {
		vp := hit.(*vertexPoint)
		if geo.Distance(p, vp.ord) < radius {
			return true
		}
	}
	return false
}

// nearestCandidates returns other vertices ordered by proximity to p, the
// "neighbour candidate ordering" responsibility of component C3 (spec.md
// §4.3.3), backed by the R-tree's nearest-neighbour query instead of the
// teacher's arbitrary-order linear scan (prm_graph.go:
// CreateGraphWithStartEnd iterates g.Nodes in index order).
func (r *Roadmap) nearestCandidates(p geo.WorldOrd, exclude graph.VertexId) []graph.VertexId {
	k := len(r.network)
	if k == 0 {
		return nil
	}
	hits := r.index.NearestNeighbors(k, rtreego.Point{p.X(), p.Y()})

	out := make([]graph.VertexId, 0, len(hits))
	for _, hit := range hits {
		vp, ok := hit.(*vertexPoint)
		if !ok || vp.id == exclude {
			continue
		}
		out = append(out, vp.id)
	}
	return out
}

// connectToExisting attempts to join v to every other vertex in the
// roadmap, closest first, skipping candidates that already neighbour v,
// exceed MaxEdgeLen, or fail the grid's line-of-sight check, and stopping
// once v is at degree capacity (spec.md §4.3.3).
func (r *Roadmap) connectToExisting(v graph.VertexId, cspace *grid.Grid) {
	vOrd := r.network[v]
	vCell := cspace.WorldToCell(vOrd)

	for _, u := range r.nearestCandidates(vOrd, v) {
		if r.g.Degree(v) >= r.g.MaxDegree {
			return
		}
		if r.g.HasEdge(u, v) {
			continue
		}

		uOrd := r.network[u]
		d := geo.Distance(vOrd, uOrd)
		if d > r.g.MaxEdgeLen {
			continue
		}

		uCell := cspace.WorldToCell(uOrd)
		if cspace.CanConnect(vCell, uCell) {
			r.g.AddEdge(v, u, d)
		}
	}
}

func (r *Roadmap) sample() geo.WorldOrd {
	x := r.reference.X() - r.mapSizeM/2 + r.rng.Float64()*r.mapSizeM
	y := r.reference.Y() - r.mapSizeM/2 + r.rng.Float64()*r.mapSizeM
	return geo.NewWorldOrd(x, y).Rounded()
}

func (r *Roadmap) toOrdPath(ids []graph.VertexId) []geo.WorldOrd {
	out := make([]geo.WorldOrd, len(ids))
	for i, id := range ids {
		out[i] = r.network[id]
	}
	return out
}

// Build constructs (or extends) the roadmap between start and goal within
// cspace and returns the optimised waypoint path, or nil if none was found
// (spec.md §4.3.2). ctx is polled at the top of each sampling iteration so
// an in-progress build can be cancelled cleanly at the sampling-loop
// boundary (spec.md §5).
func (r *Roadmap) Build(ctx context.Context, m *grid.Grid, start, goal geo.WorldOrd) []geo.WorldOrd {
	cspace := m.ExpandCSpace(r.robotDiameter)

	startCell := cspace.WorldToCell(start)
	goalCell := cspace.WorldToCell(goal)
	if !cspace.IsFree(startCell) || !cspace.IsFree(goalCell) {
		log.Printf("❌ goal inaccessible: start=(%.1f,%.1f) goal=(%.1f,%.1f)\n",
			start.X(), start.Y(), goal.X(), goal.Y())
		return nil
	}

	vs := r.findOrAdd(start)
	vg := r.findOrAdd(goal)

	if path := r.g.ShortestPath(vs, vg); len(path) > 0 {
		return r.optimisePath(cspace, r.toOrdPath(path))
	}

	r.connectToExisting(vs, cspace)
	r.connectToExisting(vg, cspace)
	if path := r.g.ShortestPath(vs, vg); len(path) > 0 {
		return r.optimisePath(cspace, r.toOrdPath(path))
	}

	for i := 0; i < r.maxSamples; i++ {
		select {
		case <-ctx.Done():
			log.Println("⚠️  build cancelled during sampling loop")
			return nil
		default:
		}

		p := r.sample()
		cell := cspace.WorldToCell(p)
		if !cspace.IsFree(cell) {
			continue
		}
		if r.violatesDispersion(p, r.dispersion) {
			continue
		}

		v := r.findOrAdd(p)
		r.connectToExisting(v, cspace)

		if path := r.g.ShortestPath(vs, vg); len(path) > 0 {
			return r.optimisePath(cspace, r.toOrdPath(path))
		}
	}

	log.Println("❌ sampling loop exhausted without finding a path")
	return nil
}

// optimisePath shortcuts path by repeatedly jumping to the farthest
// ahead ordinate still in line-of-sight, preserving endpoints (spec.md
// §4.3.4).
func (r *Roadmap) optimisePath(cspace *grid.Grid, path []geo.WorldOrd) []geo.WorldOrd {
	if len(path) <= 1 {
		return path
	}

	n := len(path) - 1
	result := []geo.WorldOrd{path[0]}

	i := 0
	for i < n {
		j := n
		for j > i+1 && !cspace.CanConnect(cspace.WorldToCell(path[i]), cspace.WorldToCell(path[j])) {
			j--
		}
		result = append(result, path[j])
		i = j
	}

	return result
}
