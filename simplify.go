package main

import (
	"math"
)

// SimplifyRoute drops waypoints that lie within epsilon of the straight line
// between their kept neighbours (Douglas-Peucker). The first and last points
// are always kept. The result is for steering and display only: consecutive
// waypoints are generally not graph edges.
func SimplifyRoute(path []Point, epsilon float64) []Point {
	if epsilon <= 0 || len(path) <= 2 {
		return path
	}
	return douglasPeucker(path, epsilon)
}

// douglasPeucker marks the waypoints to keep with an explicit span stack
// instead of recursing, then copies them out in path order.
func douglasPeucker(points []Point, epsilon float64) []Point {
	keep := make([]bool, len(points))
	keep[0], keep[len(points)-1] = true, true

	type span struct{ lo, hi int }
	stack := []span{{0, len(points) - 1}}
	kept := 2
	for len(stack) > 0 {
		sp := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		far, farDist := -1, epsilon
		for i := sp.lo + 1; i < sp.hi; i++ {
			if d := perpendicularDistance(points[i], points[sp.lo], points[sp.hi]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		keep[far] = true
		kept++
		stack = append(stack, span{sp.lo, far}, span{far, sp.hi})
	}

	out := make([]Point, 0, kept)
	for i, p := range points {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// perpendicularDistance is the distance from point to the line through
// lineStart and lineEnd, or to lineStart when the two coincide
func perpendicularDistance(point, lineStart, lineEnd Point) float64 {
	dx := lineEnd.X - lineStart.X
	dy := lineEnd.Y - lineStart.Y

	mag := math.Hypot(dx, dy)
	if mag == 0 {
		return point.Distance(lineStart)
	}

	// |cross(d, p - start)| / |d|
	return math.Abs(dx*(point.Y-lineStart.Y)-dy*(point.X-lineStart.X)) / mag
}
