// Package skim answers shortest-path distance and node-sequence queries
// over a static road network.
//
// A graph-backed skim precomputes the all-pairs shortest-path table with
// Dijkstra (gonum) at construction, so Distance is a table lookup and
// Path is a cached reconstruction. A matrix-backed skim carries only the
// pairwise length table and cannot answer Path queries.
package skim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	// ErrUnknownNode is returned when a queried node is absent from the
	// road network.
	ErrUnknownNode = errors.New("skim: unknown node")

	// ErrUnsupportedSkim is returned when a node path is requested from
	// a skim that is not graph-backed.
	ErrUnsupportedSkim = errors.New("skim: node paths require a graph-backed skim")

	// ErrNoRoute is returned when two known nodes are not connected.
	ErrNoRoute = errors.New("skim: no route between nodes")
)

// ─── Skim ───────────────────────────────────────────────────

// Edge is one undirected road segment with its length in meters.
type Edge struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Length float64 `json:"length_m"`
}

// Skim is an immutable shortest-path oracle. All methods are pure and
// deterministic; it is safe for concurrent readers.
type Skim struct {
	g   *simple.WeightedUndirectedGraph // nil when matrix-backed
	all path.AllShortest

	dist map[int64]map[int64]float64 // matrix-backed lengths
}

// NewGraphSkim builds a graph-backed skim and precomputes the all-pairs
// shortest-path table.
//
// Complexity: O(V·(E + V log V)) once; Distance lookups afterwards are O(1)
// per segment.
func NewGraphSkim(nodes []int64, edges []Edge) (*Skim, error) {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, n := range nodes {
		if g.Node(n) == nil {
			g.AddNode(simple.Node(n))
		}
	}
	for _, e := range edges {
		if e.Length < 0 {
			return nil, fmt.Errorf("skim: negative edge length %f on %d-%d", e.Length, e.From, e.To)
		}
		if e.From == e.To {
			continue
		}
		for _, n := range []int64{e.From, e.To} {
			if g.Node(n) == nil {
				g.AddNode(simple.Node(n))
			}
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.From), simple.Node(e.To), e.Length))
	}
	return &Skim{g: g, all: path.DijkstraAllPaths(g)}, nil
}

// NewMatrixSkim builds a skim from a precomputed pairwise length table.
// The table is read symmetrically: dist[a][b] falls back to dist[b][a].
func NewMatrixSkim(dist map[int64]map[int64]float64) *Skim {
	return &Skim{dist: dist}
}

// GraphBacked reports whether Path queries are supported.
func (s *Skim) GraphBacked() bool { return s.g != nil }

// Has reports whether the node is part of the network.
func (s *Skim) Has(node int64) bool {
	if s.g != nil {
		return s.g.Node(node) != nil
	}
	_, ok := s.dist[node]
	return ok
}

// ─── Queries ────────────────────────────────────────────────

// Distance sums pairwise shortest-path lengths between consecutive
// distinct nodes of seq, in meters. Singleton and equal-adjacent
// sequences contribute zero.
func (s *Skim) Distance(seq ...int64) (float64, error) {
	total := 0.0
	for i := 0; i+1 < len(seq); i++ {
		if seq[i] == seq[i+1] {
			continue
		}
		d, err := s.segment(seq[i], seq[i+1])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// Path concatenates the per-segment shortest node paths of seq,
// deduplicating seam nodes.
func (s *Skim) Path(seq ...int64) ([]int64, error) {
	if s.g == nil {
		return nil, ErrUnsupportedSkim
	}
	var out []int64
	for i := 0; i+1 < len(seq); i++ {
		u, v := seq[i], seq[i+1]
		if !s.Has(u) || !s.Has(v) {
			return nil, fmt.Errorf("%w: %d-%d", ErrUnknownNode, u, v)
		}
		if u == v {
			if len(out) == 0 {
				out = append(out, u)
			}
			continue
		}
		nodes, _, _ := s.all.Between(u, v)
		if nodes == nil {
			return nil, fmt.Errorf("%w: %d-%d", ErrNoRoute, u, v)
		}
		for _, n := range nodes {
			id := n.ID()
			if len(out) > 0 && out[len(out)-1] == id {
				continue
			}
			out = append(out, id)
		}
	}
	if out == nil && len(seq) > 0 {
		out = []int64{seq[0]}
	}
	return out, nil
}

func (s *Skim) segment(u, v int64) (float64, error) {
	if s.g != nil {
		if !s.Has(u) || !s.Has(v) {
			return 0, fmt.Errorf("%w: %d-%d", ErrUnknownNode, u, v)
		}
		w := s.all.Weight(u, v)
		if math.IsInf(w, 1) {
			return 0, fmt.Errorf("%w: %d-%d", ErrNoRoute, u, v)
		}
		return w, nil
	}
	row, ok := s.dist[u]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownNode, u)
	}
	if d, ok := row[v]; ok {
		return d, nil
	}
	if back, ok := s.dist[v]; ok {
		if d, ok := back[u]; ok {
			return d, nil
		}
		return 0, fmt.Errorf("%w: %d-%d", ErrNoRoute, u, v)
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownNode, v)
}
