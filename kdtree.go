package main

import (
	"cmp"
	"math"
	"slices"
)

// kdEntry is one graph node stored in the static tree
type kdEntry struct {
	key   NodeKey
	point Point
}

// NodeIndex is a balanced k-d tree over the nodes of a NavGraph, used to snap
// world positions to the nearest node. The tree is implicit: the root of any
// sub-slice entries[lo:hi] sits at lo+(hi-lo)/2, split on x at even depth and
// y at odd depth.
type NodeIndex struct {
	entries []kdEntry
	members map[NodeKey]struct{}
}

// NewNodeIndex builds the tree over every node of g
func NewNodeIndex(g *NavGraph) *NodeIndex {
	return newNodeIndex(g.AllNodes())
}

func newNodeIndex(points []Point) *NodeIndex {
	ix := &NodeIndex{
		entries: make([]kdEntry, 0, len(points)),
		members: make(map[NodeKey]struct{}, len(points)),
	}
	for _, p := range points {
		key := KeyOf(p)
		if _, dup := ix.members[key]; dup {
			continue
		}
		ix.members[key] = struct{}{}
		ix.entries = append(ix.entries, kdEntry{key: key, point: key.Point()})
	}
	buildKD(ix.entries, 0)
	return ix
}

// buildKD sorts entries in place into implicit tree order
func buildKD(entries []kdEntry, depth int) {
	if len(entries) <= 1 {
		return
	}
	axis := axisFor(depth)
	slices.SortFunc(entries, func(a, b kdEntry) int {
		return compareOnAxis(a.point, b.point, axis)
	})
	mid := len(entries) / 2
	buildKD(entries[:mid], depth+1)
	buildKD(entries[mid+1:], depth+1)
}

// compareOnAxis orders by the split axis, then the other axis so that
// construction is independent of input order
func compareOnAxis(a, b Point, axis int) int {
	if c := cmp.Compare(a.Coord(axis), b.Coord(axis)); c != 0 {
		return c
	}
	return cmp.Compare(a.Coord(1-axis), b.Coord(1-axis))
}

// Len returns the number of indexed nodes
func (ix *NodeIndex) Len() int { return len(ix.entries) }

// Contains reports whether p rounds to an indexed node
func (ix *NodeIndex) Contains(p Point) bool {
	_, ok := ix.members[KeyOf(p)]
	return ok
}

// nearestQuery carries the running best of a branch-and-bound search
type nearestQuery struct {
	target Point
	best   int     // entry index, -1 until something is in range
	bestSq float64 // squared distance of best, or the squared radius bound
}

// FindNearest returns the node nearest to p. When maxRadius > 0 nodes farther
// than maxRadius are never returned; maxRadius <= 0 means unbounded.
func (ix *NodeIndex) FindNearest(p Point, maxRadius float64) (Point, bool) {
	if len(ix.entries) == 0 {
		return p, false
	}

	limitSq := math.Inf(1)
	if maxRadius > 0 {
		limitSq = maxRadius * maxRadius
	}

	// Exact hit: p already is a node
	key := KeyOf(p)
	if _, ok := ix.members[key]; ok {
		node := key.Point()
		if node.DistanceSquared(p) <= limitSq {
			return node, true
		}
	}

	q := nearestQuery{target: p, best: -1, bestSq: limitSq}
	ix.search(0, len(ix.entries), 0, &q)
	if q.best < 0 {
		return p, false
	}
	return ix.entries[q.best].point, true
}

// Snap returns the nearest node within maxRadius, or p itself when none is in range
func (ix *NodeIndex) Snap(p Point, maxRadius float64) Point {
	node, _ := ix.FindNearest(p, maxRadius)
	return node
}

func (ix *NodeIndex) search(lo, hi, depth int, q *nearestQuery) {
	if lo >= hi {
		return
	}
	mid := lo + (hi-lo)/2
	e := &ix.entries[mid]

	d := e.point.DistanceSquared(q.target)
	if d < q.bestSq || (q.best < 0 && d <= q.bestSq) {
		q.best = mid
		q.bestSq = d
	}

	axis := axisFor(depth)
	diff := q.target.Coord(axis) - e.point.Coord(axis)

	nearLo, nearHi, farLo, farHi := mid+1, hi, lo, mid
	if diff < 0 {
		nearLo, nearHi, farLo, farHi = lo, mid, mid+1, hi
	}

	ix.search(nearLo, nearHi, depth+1, q)

	// The far side can only hold a closer node if the splitting line is closer than the best so far
	planeSq := diff * diff
	if planeSq < q.bestSq || (q.best < 0 && planeSq <= q.bestSq) {
		ix.search(farLo, farHi, depth+1, q)
	}
}
