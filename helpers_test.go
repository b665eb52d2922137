package main

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// gridRecords builds a w x h 4-connected grid with unit spacing. border marks
// border nodes and may be nil.
func gridRecords(w, h int, border func(x, y int) bool) []NodeRecord {
	recs := make([]NodeRecord, 0, w*h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			rec := NodeRecord{Position: Point{X: float64(x), Y: float64(y)}}
			if border != nil {
				rec.IsBorder = border(x, y)
			}
			for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				rec.Neighbors = append(rec.Neighbors, Point{X: float64(nx), Y: float64(ny)})
			}
			recs = append(recs, rec)
		}
	}
	return recs
}

func buildGrid(t testing.TB, w, h int, border func(x, y int) bool) *NavGraph {
	t.Helper()
	g, err := BuildGraph(gridRecords(w, h, border))
	require.NoError(t, err)
	return g
}

// randomCloud returns n distinct points on the 0.1 lattice inside [0,size)^2
func randomCloud(rng *rand.Rand, n int, size float64) []Point {
	seen := make(map[NodeKey]bool, n)
	out := make([]Point, 0, n)
	for len(out) < n {
		p := Point{X: rng.Float64() * size, Y: rng.Float64() * size}.Canonical()
		if seen[KeyOf(p)] {
			continue
		}
		seen[KeyOf(p)] = true
		out = append(out, p)
	}
	return out
}

// randomGraph connects each point of a random cloud to its k nearest
// neighbors (directed), with some border nodes
func randomGraph(t testing.TB, rng *rand.Rand, n, k int, size float64) *NavGraph {
	t.Helper()
	pts := randomCloud(rng, n, size)
	recs := make([]NodeRecord, len(pts))
	for i, p := range pts {
		recs[i] = NodeRecord{Position: p, IsBorder: rng.Intn(4) == 0}
		for _, q := range bruteKNearest(pts, p, k+1) {
			if q != p {
				recs[i].Neighbors = append(recs[i].Neighbors, q)
			}
		}
	}
	g, err := BuildGraph(recs)
	require.NoError(t, err)
	return g
}

func bruteKNearest(pts []Point, p Point, k int) []Point {
	out := make([]Point, 0, k)
	used := make([]bool, len(pts))
	for len(out) < k && len(out) < len(pts) {
		best := -1
		for i, q := range pts {
			if used[i] {
				continue
			}
			if best < 0 || q.DistanceSquared(p) < pts[best].DistanceSquared(p) {
				best = i
			}
		}
		used[best] = true
		out = append(out, pts[best])
	}
	return out
}

// bruteNearestDist is the distance from p to the closest of pts
func bruteNearestDist(pts []Point, p Point) float64 {
	best := -1.0
	for _, q := range pts {
		if d := q.Distance(p); best < 0 || d < best {
			best = d
		}
	}
	return best
}

// dijkstraCost is the oracle: minimum weighted cost from start to goal, skipping
// nodes for which blocked returns true. ok is false when goal is unreachable.
func dijkstraCost(g *NavGraph, start, goal Point, borderPriority float64, blocked func(Point) bool) (float64, bool) {
	dist := map[NodeKey]float64{KeyOf(start): 0}
	done := make(map[NodeKey]bool)

	for {
		cur, found := NodeKey{}, false
		for k, d := range dist {
			if done[k] {
				continue
			}
			if !found || d < dist[cur] {
				cur, found = k, true
			}
		}
		if !found {
			return 0, false
		}
		if cur == KeyOf(goal) {
			return dist[cur], true
		}
		done[cur] = true

		for _, nb := range g.neighborKeys(cur) {
			if blocked != nil && blocked(nb.Point()) {
				continue
			}
			c := cur.Point().Distance(nb.Point())
			if g.isBorderKey(nb) {
				c *= borderPriority
			}
			if d, ok := dist[nb]; !ok || dist[cur]+c < d {
				dist[nb] = dist[cur] + c
			}
		}
	}
}

// pathCost re-derives the weighted cost of a path and checks each hop is an edge
func pathCost(t testing.TB, g *NavGraph, path []Point, borderPriority float64) float64 {
	t.Helper()
	total := 0.0
	for i := 1; i < len(path); i++ {
		require.Contains(t, g.Neighbors(path[i-1]), path[i], fmt.Sprintf("hop %d is not an edge", i))
		c := path[i-1].Distance(path[i])
		if g.IsBorder(path[i]) {
			c *= borderPriority
		}
		total += c
	}
	return total
}

func pt(x, y float64) Point { return Point{X: x, Y: y} }
