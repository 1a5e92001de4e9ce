// Package graph implements the undirected weighted roadmap graph keyed by
// opaque VertexId, with a per-vertex degree cap, a max edge length, and
// Dijkstra shortest-path search (spec.md §4.2, component C2).
//
// Grounded on the teacher's Graph/Edge shape (graph.go, visibility_graph.go)
// and the container/heap priority-queue search in astar.go, re-targeted
// from A* to Dijkstra with a deterministic tie-break
// (original_source/src/prmplanner.h: shortestPath). Storage is backed by
// gonum.org/v1/gonum/graph/simple, the same package
// viamrobotics-rdk/kinematics/model.go uses for its own weighted graph.
package graph

import (
	"container/heap"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// VertexId is an opaque, monotonically issued, never-reused identifier for
// a roadmap node (spec.md Data Model: VertexId).
type VertexId int64

// Defaults for the invariants in spec.md §3 (I4, I5).
const (
	DefaultMaxDegree  = 5
	DefaultMaxEdgeLen = 2.5
)

// Neighbour is one entry in a vertex's adjacency list.
type Neighbour struct {
	Vertex VertexId
	Weight float64
}

// Graph is an undirected weighted graph with a per-vertex degree cap
// (MaxDegree) and a maximum edge length (MaxEdgeLen). Both are enforced by
// this wrapper; the underlying gonum graph has no notion of either.
type Graph struct {
	g          *simple.WeightedUndirectedGraph
	MaxDegree  int
	MaxEdgeLen float64
}

// New builds an empty Graph. A maxDegree or maxEdgeLen of zero or less
// falls back to the spec.md defaults.
func New(maxDegree int, maxEdgeLen float64) *Graph {
	if maxDegree <= 0 {
		maxDegree = DefaultMaxDegree
	}
	if maxEdgeLen <= 0 {
		maxEdgeLen = DefaultMaxEdgeLen
	}
	return &Graph{
		g:          simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		MaxDegree:  maxDegree,
		MaxEdgeLen: maxEdgeLen,
	}
}

// AddVertex inserts v with an empty neighbour set. Idempotent if v is
// already present.
func (gr *Graph) AddVertex(v VertexId) {
	if gr.g.Node(int64(v)) == nil {
		gr.g.AddNode(simple.Node(int64(v)))
	}
}

// Has reports whether v exists in the graph.
func (gr *Graph) Has(v VertexId) bool {
	return gr.g.Node(int64(v)) != nil
}

// Degree returns the number of neighbours v currently has. Zero for a
// vertex that doesn't exist.
func (gr *Graph) Degree(v VertexId) int {
	if !gr.Has(v) {
		return 0
	}
	return gr.g.From(int64(v)).Len()
}

// HasEdge reports whether u and v are already neighbours.
func (gr *Graph) HasEdge(u, v VertexId) bool {
	return gr.g.HasEdgeBetween(int64(u), int64(v))
}

// AddEdge inserts a symmetric edge u<->v with the given weight. It refuses
// and returns false if u==v, weight<=0, weight>MaxEdgeLen, the edge already
// exists, or either endpoint is already at MaxDegree capacity (spec.md §4.2,
// invariants I1-I5). Both endpoints are added as vertices if missing.
func (gr *Graph) AddEdge(u, v VertexId, weight float64) bool {
	if u == v || weight <= 0 || weight > gr.MaxEdgeLen {
		return false
	}
	if gr.HasEdge(u, v) {
		return false
	}
	if gr.Degree(u) >= gr.MaxDegree || gr.Degree(v) >= gr.MaxDegree {
		return false
	}

	gr.AddVertex(u)
	gr.AddVertex(v)
	gr.g.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(int64(u)),
		T: simple.Node(int64(v)),
		W: weight,
	})
	return true
}

// Neighbours returns v's neighbours ordered by VertexId, for deterministic
// iteration.
func (gr *Graph) Neighbours(v VertexId) []Neighbour {
	if !gr.Has(v) {
		return nil
	}
	it := gr.g.From(int64(v))
	out := make([]Neighbour, 0, it.Len())
	for it.Next() {
		n := it.Node()
		w, _ := gr.g.Weight(int64(v), n.ID())
		out = append(out, Neighbour{Vertex: VertexId(n.ID()), Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vertex < out[j].Vertex })
	return out
}

// Container returns a snapshot of every vertex and its neighbour set, used
// by the roadmap to compose the overlay image. The map is built fresh on
// each call; changing it does not affect the graph.
func (gr *Graph) Container() map[VertexId][]Neighbour {
	nodes := gr.g.Nodes()
	out := make(map[VertexId][]Neighbour, nodes.Len())
	for nodes.Next() {
		v := VertexId(nodes.Node().ID())
		out[v] = gr.Neighbours(v)
	}
	return out
}

type searchEntry struct {
	vertex    VertexId
	dist      float64
	parent    VertexId
	hasParent bool
	index     int
}

// frontier is a min-heap on (dist, vertex), the priority queue shape of the
// teacher's astar.go PriorityQueue with the heuristic term dropped and an
// explicit VertexId tie-break added for deterministic results on equal
// tentative distances (spec.md §4.2, §8 property 6).
type frontier []*searchEntry

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].vertex < f[j].vertex
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x interface{}) {
	e := x.(*searchEntry)
	e.index = len(*f)
	*f = append(*f, e)
}

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*f = old[:n-1]
	return e
}

// ShortestPath runs Dijkstra from src to dst over the graph's current edge
// set and returns the ordered vertex path, or nil if unreachable. Returns
// [src] when src==dst without considering any zero-weight self-loop
// (spec.md §8 property 6); AddEdge never admits one anyway (I3).
func (gr *Graph) ShortestPath(src, dst VertexId) []VertexId {
	if !gr.Has(src) || !gr.Has(dst) {
		return nil
	}
	if src == dst {
		return []VertexId{src}
	}

	best := map[VertexId]*searchEntry{src: {vertex: src, dist: 0}}
	visited := make(map[VertexId]bool)

	pq := &frontier{}
	heap.Init(pq)
	heap.Push(pq, best[src])

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*searchEntry)
		if visited[cur.vertex] {
			continue
		}
		visited[cur.vertex] = true

		if cur.vertex == dst {
			return reconstruct(best, dst)
		}

		for _, nb := range gr.Neighbours(cur.vertex) {
			if visited[nb.Vertex] {
				continue
			}
			tentative := cur.dist + nb.Weight
			if existing, ok := best[nb.Vertex]; !ok || tentative < existing.dist {
				entry := &searchEntry{vertex: nb.Vertex, dist: tentative, parent: cur.vertex, hasParent: true}
				best[nb.Vertex] = entry
				heap.Push(pq, entry)
			}
		}
	}

	return nil
}

func reconstruct(best map[VertexId]*searchEntry, dst VertexId) []VertexId {
	var path []VertexId
	for v := dst; ; {
		path = append([]VertexId{v}, path...)
		e := best[v]
		if !e.hasParent {
			break
		}
		v = e.parent
	}
	return path
}
