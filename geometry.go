package main

import (
	"math"

	"github.com/paulmach/orb"
)

// nodePrecision is the grid resolution node coordinates are canonicalized to.
const nodePrecision = 0.1

// keyScale converts world units to fixed-point key units (1 / nodePrecision).
const keyScale = 10

// maxKeyCoord bounds scaled coordinates so KeyOf never overflows int64.
const maxKeyCoord = 1 << 62

// Point is a position in world space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeKey is the fixed-point identity of a graph node.
// Positions that round to the same key are the same node.
type NodeKey struct {
	X, Y int64
}

// KeyOf canonicalizes a world position to its node key
func KeyOf(p Point) NodeKey {
	return NodeKey{
		X: int64(math.Round(p.X * keyScale)),
		Y: int64(math.Round(p.Y * keyScale)),
	}
}

// Point returns the canonical world position of the key
func (k NodeKey) Point() Point {
	return Point{X: float64(k.X) / keyScale, Y: float64(k.Y) / keyScale}
}

// Canonical returns p rounded to the node grid
func (p Point) Canonical() Point {
	return KeyOf(p).Point()
}

// Distance calculates Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	return math.Sqrt(p.DistanceSquared(other))
}

// DistanceSquared avoids the square root for comparisons
func (p Point) DistanceSquared(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// Coord returns the coordinate along axis 0 (x) or 1 (y)
func (p Point) Coord(axis int) float64 {
	if axis == 0 {
		return p.X
	}
	return p.Y
}

// IsFinite reports whether both coordinates are real numbers
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Keyable reports whether p is finite and small enough to have a distinct node key
func (p Point) Keyable() bool {
	return p.IsFinite() &&
		math.Abs(p.X*keyScale) <= maxKeyCoord &&
		math.Abs(p.Y*keyScale) <= maxKeyCoord
}

// Orb converts the point for use with orb geometry and GeoJSON
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// ManhattanDistance is |dx| + |dy|
func ManhattanDistance(a, b Point) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

// DiagonalDistance is the octile distance: max(dx,dy) + (sqrt(2)-1)*min(dx,dy)
func DiagonalDistance(a, b Point) float64 {
	dx := math.Abs(a.X - b.X)
	dy := math.Abs(a.Y - b.Y)
	return math.Max(dx, dy) + (math.Sqrt2-1)*math.Min(dx, dy)
}

// CombinedHeuristic picks the smaller of the Manhattan and octile estimates
func CombinedHeuristic(a, b Point) float64 {
	return math.Min(ManhattanDistance(a, b), DiagonalDistance(a, b))
}

// axisFor returns the splitting axis used at a given tree depth: x on even, y on odd
func axisFor(depth int) int {
	return depth % 2
}
