package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrMalformedGraph is wrapped by every graph build and load failure
var ErrMalformedGraph = errors.New("malformed graph snapshot")

// NodeRecord is one entry of a graph snapshot: a node, its border flag and its neighbors
type NodeRecord struct {
	Position  Point
	IsBorder  bool
	Neighbors []Point
}

// graphNode holds the adjacency of one node
type graphNode struct {
	point     Point
	border    bool
	neighbors []NodeKey
}

// NavGraph is the immutable navigation graph. Edges are directed as loaded.
type NavGraph struct {
	nodes   map[NodeKey]*graphNode
	order   []NodeKey
	borders int
	edges   int
	bounds  orb.Bound
}

// BuildGraph constructs a NavGraph from snapshot records.
// Records whose positions round to the same key are merged. Either the
// whole graph is returned or an error wrapping ErrMalformedGraph.
func BuildGraph(records []NodeRecord) (*NavGraph, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrMalformedGraph)
	}

	g := &NavGraph{
		nodes: make(map[NodeKey]*graphNode, len(records)),
		order: make([]NodeKey, 0, len(records)),
	}

	// First pass: register every node so neighbor references can be checked
	for i, rec := range records {
		if !rec.Position.Keyable() {
			return nil, fmt.Errorf("%w: record %d has non-finite or out-of-range position (%v, %v)",
				ErrMalformedGraph, i, rec.Position.X, rec.Position.Y)
		}
		key := KeyOf(rec.Position)
		node, exists := g.nodes[key]
		if !exists {
			node = &graphNode{point: key.Point()}
			g.nodes[key] = node
			g.order = append(g.order, key)
		}
		node.border = node.border || rec.IsBorder
	}

	// Second pass: resolve neighbors
	seen := make(map[NodeKey]bool)
	for i, rec := range records {
		key := KeyOf(rec.Position)
		node := g.nodes[key]

		clear(seen)
		for _, existing := range node.neighbors {
			seen[existing] = true
		}

		for j, nb := range rec.Neighbors {
			if !nb.Keyable() {
				return nil, fmt.Errorf("%w: record %d neighbor %d has non-finite or out-of-range position (%v, %v)",
					ErrMalformedGraph, i, j, nb.X, nb.Y)
			}
			nbKey := KeyOf(nb)
			if _, ok := g.nodes[nbKey]; !ok {
				return nil, fmt.Errorf("%w: node (%.1f, %.1f) lists neighbor (%.1f, %.1f) which is not a node",
					ErrMalformedGraph, node.point.X, node.point.Y, nb.X, nb.Y)
			}
			if nbKey == key || seen[nbKey] {
				continue
			}
			seen[nbKey] = true
			node.neighbors = append(node.neighbors, nbKey)
		}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, key := range g.order {
		node := g.nodes[key]
		if node.border {
			g.borders++
		}
		g.edges += len(node.neighbors)
		minX = math.Min(minX, node.point.X)
		minY = math.Min(minY, node.point.Y)
		maxX = math.Max(maxX, node.point.X)
		maxY = math.Max(maxY, node.point.Y)
	}
	g.bounds = orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}

	return g, nil
}

// Neighbors returns the neighbor positions of p, or nil if p is not a node
func (g *NavGraph) Neighbors(p Point) []Point {
	node, ok := g.nodes[KeyOf(p)]
	if !ok {
		return nil
	}
	out := make([]Point, len(node.neighbors))
	for i, k := range node.neighbors {
		out[i] = g.nodes[k].point
	}
	return out
}

// neighborKeys is the allocation-free variant used by the search
func (g *NavGraph) neighborKeys(k NodeKey) []NodeKey {
	if node, ok := g.nodes[k]; ok {
		return node.neighbors
	}
	return nil
}

// Contains reports whether p rounds to a graph node
func (g *NavGraph) Contains(p Point) bool {
	_, ok := g.nodes[KeyOf(p)]
	return ok
}

// IsBorder reports whether p is a border node (false if absent)
func (g *NavGraph) IsBorder(p Point) bool {
	return g.isBorderKey(KeyOf(p))
}

func (g *NavGraph) isBorderKey(k NodeKey) bool {
	node, ok := g.nodes[k]
	return ok && node.border
}

// AllNodes returns every node in snapshot order
func (g *NavGraph) AllNodes() []Point {
	out := make([]Point, len(g.order))
	for i, k := range g.order {
		out[i] = g.nodes[k].point
	}
	return out
}

// Len is the number of nodes
func (g *NavGraph) Len() int { return len(g.order) }

// BorderCount is the number of border nodes
func (g *NavGraph) BorderCount() int { return g.borders }

// EdgeCount is the number of directed edges
func (g *NavGraph) EdgeCount() int { return g.edges }

// Bounds is the bounding box of all nodes
func (g *NavGraph) Bounds() orb.Bound { return g.bounds }

// Lines returns the graph edges as segments, each undirected pair once
func (g *NavGraph) Lines() [][2]Point {
	lines := make([][2]Point, 0, g.edges)

	// Use a set to avoid duplicate edges (listed in both directions)
	seen := make(map[[2]NodeKey]bool, g.edges)

	for _, key := range g.order {
		node := g.nodes[key]
		for _, nbKey := range node.neighbors {
			pair := [2]NodeKey{key, nbKey}
			if lessKey(nbKey, key) {
				pair = [2]NodeKey{nbKey, key}
			}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			lines = append(lines, [2]Point{node.point, g.nodes[nbKey].point})
		}
	}

	return lines
}

func lessKey(a, b NodeKey) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// records converts the graph back to snapshot records in AllNodes order
func (g *NavGraph) records() []NodeRecord {
	out := make([]NodeRecord, 0, len(g.order))
	for _, key := range g.order {
		node := g.nodes[key]
		rec := NodeRecord{
			Position:  node.point,
			IsBorder:  node.border,
			Neighbors: make([]Point, len(node.neighbors)),
		}
		for i, nb := range node.neighbors {
			rec.Neighbors[i] = g.nodes[nb].point
		}
		out = append(out, rec)
	}
	return out
}
