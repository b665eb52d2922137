package main

import (
	"cmp"
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// nodeTolerance is the half-width of the box each node occupies in the R-tree.
// rtreego treats touching rectangles as disjoint, so nodes need some extent.
const nodeTolerance = nodePrecision / 4

// NodeEntry wraps a graph node for R-tree storage
type NodeEntry struct {
	Key  NodeKey
	BBox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *NodeEntry) Bounds() rtreego.Rect {
	return e.BBox
}

// RegionIndex answers bounding-box queries over graph nodes
type RegionIndex struct {
	tree *rtreego.Rtree
}

// NewRegionIndex bulk-loads every node of g
func NewRegionIndex(g *NavGraph) *RegionIndex {
	nodes := g.AllNodes()
	objs := make([]rtreego.Spatial, 0, len(nodes))
	for _, p := range nodes {
		objs = append(objs, &NodeEntry{
			Key:  KeyOf(p),
			BBox: rtreego.Point{p.X, p.Y}.ToRect(nodeTolerance),
		})
	}

	// 2D, min 25, max 50 entries per node
	return &RegionIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

// Len is the number of indexed nodes
func (ri *RegionIndex) Len() int { return ri.tree.Size() }

// QueryRegion returns nodes inside b (edges inclusive), ordered by x then y
func (ri *RegionIndex) QueryRegion(b orb.Bound) []Point {
	keys := ri.queryKeys(b)
	out := make([]Point, len(keys))
	for i, k := range keys {
		out[i] = k.Point()
	}
	return out
}

func (ri *RegionIndex) queryKeys(b orb.Bound) []NodeKey {
	bbox, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min[0] - nodeTolerance, b.Min[1] - nodeTolerance},
		rtreego.Point{b.Max[0] + nodeTolerance, b.Max[1] + nodeTolerance},
	)
	if err != nil {
		return nil
	}

	results := ri.tree.SearchIntersect(bbox)
	keys := make([]NodeKey, 0, len(results))
	for _, item := range results {
		entry := item.(*NodeEntry)
		if b.Contains(entry.Key.Point().Orb()) {
			keys = append(keys, entry.Key)
		}
	}

	slices.SortFunc(keys, func(a, b NodeKey) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return keys
}

// Nearest returns the k nodes closest to p, nearest first
func (ri *RegionIndex) Nearest(p Point, k int) []Point {
	if k <= 0 || ri.tree.Size() == 0 {
		return nil
	}
	found := ri.tree.NearestNeighbors(k, rtreego.Point{p.X, p.Y})
	out := make([]Point, 0, len(found))
	for _, item := range found {
		if item == nil {
			continue
		}
		out = append(out, item.(*NodeEntry).Key.Point())
	}
	return out
}

// RouteBoundingBox returns the box spanning start and end with margin on every side
func RouteBoundingBox(start, end Point, margin float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{min(start.X, end.X) - margin, min(start.Y, end.Y) - margin},
		Max: orb.Point{max(start.X, end.X) + margin, max(start.Y, end.Y) + margin},
	}
}
