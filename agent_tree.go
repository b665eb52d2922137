package main

import (
	"cmp"
	"math"
	"slices"
)

// agentNode is one agent position in the dynamic k-d tree.
// A dead node stays linked until the next rebuild and is skipped by queries.
type agentNode struct {
	id          AgentID
	pos         Point
	team        TeamID
	depth       int
	left, right *agentNode
	dead        bool
}

// agentTree is a k-d tree over moving agents. Inserts are plain binary
// insertions; balance is restored only by rebuild.
type agentTree struct {
	root *agentNode
	size int // linked nodes, dead ones included
	dead int
}

func (t *agentTree) insert(n *agentNode) {
	n.left, n.right = nil, nil
	n.dead = false
	t.size++

	if t.root == nil {
		n.depth = 0
		t.root = n
		return
	}

	cur := t.root
	for {
		axis := axisFor(cur.depth)
		if n.pos.Coord(axis) < cur.pos.Coord(axis) {
			if cur.left == nil {
				cur.left = n
				break
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = n
				break
			}
			cur = cur.right
		}
	}
	n.depth = cur.depth + 1
}

func (t *agentTree) kill(n *agentNode) {
	if n.dead {
		return
	}
	n.dead = true
	t.dead++
}

// rebuild replaces the tree with a median-split tree over live
func (t *agentTree) rebuild(live []*agentNode) {
	t.root = buildAgentTree(live, 0)
	t.size = len(live)
	t.dead = 0
}

func (t *agentTree) reset() {
	t.root = nil
	t.size = 0
	t.dead = 0
}

func buildAgentTree(nodes []*agentNode, depth int) *agentNode {
	if len(nodes) == 0 {
		return nil
	}

	axis := axisFor(depth)
	slices.SortFunc(nodes, func(a, b *agentNode) int {
		if c := compareOnAxis(a.pos, b.pos, axis); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	mid := len(nodes) / 2
	n := nodes[mid]
	n.depth = depth
	n.dead = false
	n.left = buildAgentTree(nodes[:mid], depth+1)
	n.right = buildAgentTree(nodes[mid+1:], depth+1)
	return n
}

// nearest finds the closest live node accepted by keep. Equal distances
// resolve to the smaller agent id.
func (t *agentTree) nearest(target Point, keep func(*agentNode) bool) (*agentNode, float64) {
	var best *agentNode
	bestSq := math.Inf(1)

	var walk func(n *agentNode)
	walk = func(n *agentNode) {
		if n == nil {
			return
		}

		if !n.dead && keep(n) {
			d := n.pos.DistanceSquared(target)
			if d < bestSq || (d == bestSq && best != nil && n.id < best.id) {
				best = n
				bestSq = d
			}
		}

		axis := axisFor(n.depth)
		diff := target.Coord(axis) - n.pos.Coord(axis)
		near, far := n.right, n.left
		if diff < 0 {
			near, far = n.left, n.right
		}

		walk(near)
		if diff*diff <= bestSq {
			walk(far)
		}
	}
	walk(t.root)

	return best, bestSq
}

// within collects live nodes accepted by keep at distance <= radius
func (t *agentTree) within(target Point, radius float64, keep func(*agentNode) bool) []*agentNode {
	var out []*agentNode
	radiusSq := radius * radius

	var walk func(n *agentNode)
	walk = func(n *agentNode) {
		if n == nil {
			return
		}

		if !n.dead && n.pos.DistanceSquared(target) <= radiusSq && keep(n) {
			out = append(out, n)
		}

		axis := axisFor(n.depth)
		diff := target.Coord(axis) - n.pos.Coord(axis)
		near, far := n.right, n.left
		if diff < 0 {
			near, far = n.left, n.right
		}

		walk(near)
		if diff*diff <= radiusSq {
			walk(far)
		}
	}
	walk(t.root)

	return out
}

// height is the longest root-to-leaf path, 0 for an empty tree
func (t *agentTree) height() int {
	var h func(n *agentNode) int
	h = func(n *agentNode) int {
		if n == nil {
			return 0
		}
		return 1 + max(h(n.left), h(n.right))
	}
	return h(t.root)
}
