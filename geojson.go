package main

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// linesTouching returns the undirected edges with at least one endpoint in keys
func (g *NavGraph) linesTouching(keys []NodeKey) [][2]Point {
	inside := make(map[NodeKey]bool, len(keys))
	for _, k := range keys {
		inside[k] = true
	}

	var lines [][2]Point
	seen := make(map[[2]NodeKey]bool)
	for _, key := range keys {
		node, ok := g.nodes[key]
		if !ok {
			continue
		}
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

	// Edges pointing into the region from outside
	for _, key := range g.order {
		if inside[key] {
			continue
		}
		node := g.nodes[key]
		for _, nbKey := range node.neighbors {
			if !inside[nbKey] {
				continue
			}
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

// GraphLinesCollection exports graph edges as GeoJSON LineStrings. With a
// region index and a bound, only edges touching a node inside the bound are kept.
func GraphLinesCollection(g *NavGraph, ri *RegionIndex, bound *orb.Bound) *geojson.FeatureCollection {
	var lines [][2]Point
	if ri != nil && bound != nil {
		lines = g.linesTouching(ri.queryKeys(*bound))
	} else {
		lines = g.Lines()
	}

	fc := geojson.NewFeatureCollection()
	for _, l := range lines {
		f := geojson.NewFeature(orb.LineString{l[0].Orb(), l[1].Orb()})
		f.Properties["border"] = g.IsBorder(l[0]) || g.IsBorder(l[1])
		fc.Append(f)
	}
	return fc
}

// RouteFeature exports a route as a GeoJSON LineString feature. A single-node
// route becomes a Point.
func RouteFeature(r Route) *geojson.Feature {
	var f *geojson.Feature
	switch len(r.Path) {
	case 0:
		f = geojson.NewFeature(orb.LineString{})
	case 1:
		f = geojson.NewFeature(r.Path[0].Orb())
	default:
		ls := make(orb.LineString, len(r.Path))
		for i, p := range r.Path {
			ls[i] = p.Orb()
		}
		f = geojson.NewFeature(ls)
	}

	f.Properties["outcome"] = r.Outcome.String()
	f.Properties["cost"] = r.Cost
	f.Properties["length"] = planar.Length(f.Geometry)
	f.Properties["expanded"] = r.Expanded
	return f
}
