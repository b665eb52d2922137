package main

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Outcome tells the caller how a search ended
type Outcome int

const (
	Found Outcome = iota
	Unsnappable
	Timeout
	NoRoute
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Unsnappable:
		return "unsnappable"
	case Timeout:
		return "timeout"
	case NoRoute:
		return "no route"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// label is the metric label form of the outcome
func (o Outcome) label() string {
	if o == NoRoute {
		return "no_route"
	}
	return o.String()
}

// MarshalText lets outcomes appear as strings in JSON replies
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// HeuristicMode selects the A* distance estimate
type HeuristicMode string

const (
	// HeuristicCombined is min(manhattan, octile). It can overestimate when
	// border nodes are cheaper than their Euclidean length.
	HeuristicCombined HeuristicMode = "combined"
	// HeuristicAdmissible is Euclidean distance scaled by min(1, border priority)
	HeuristicAdmissible HeuristicMode = "admissible"
)

// SearchConfig holds the path search tunables
type SearchConfig struct {
	BorderNodePriority float64       // edge cost multiplier into border nodes
	MaxPathfindingTime time.Duration // default per-call budget
	SnapRadius         float64       // <= 0 snaps without a bound
	Heuristic          HeuristicMode
}

// DefaultSearchConfig returns the stock pathfinding tunables
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		BorderNodePriority: 0.5,
		MaxPathfindingTime: 2 * time.Second,
		SnapRadius:         3.0,
		Heuristic:          HeuristicCombined,
	}
}

// OccupancyChecker answers whether a node is held by a team.
// *OccupancyIndex implements it.
type OccupancyChecker interface {
	IsOccupiedByTeam(p Point, team TeamID) bool
}

// Route is the result of one FindPath call
type Route struct {
	Path     []Point       // start to goal inclusive, nil unless Found
	Outcome  Outcome
	Cost     float64       // weighted cost of Path
	Expanded int           // nodes popped from the frontier
	Elapsed  time.Duration
}

// PathSearch runs team-aware A* over a NavGraph. Each call is independent;
// the search keeps no state between calls.
type PathSearch struct {
	graph     *NavGraph
	nodes     *NodeIndex
	occupancy OccupancyChecker
	cfg       SearchConfig
	metrics   *Metrics

	now func() time.Time
}

// NewPathSearch wires a search over graph. occupancy and metrics may be nil.
func NewPathSearch(graph *NavGraph, nodes *NodeIndex, occupancy OccupancyChecker, cfg SearchConfig, metrics *Metrics) *PathSearch {
	if nodes == nil {
		nodes = NewNodeIndex(graph)
	}
	if cfg.Heuristic == "" {
		cfg.Heuristic = HeuristicCombined
	}
	return &PathSearch{
		graph:     graph,
		nodes:     nodes,
		occupancy: occupancy,
		cfg:       cfg,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Config returns the active tunables
func (s *PathSearch) Config() SearchConfig { return s.cfg }

// Snap maps p to its nearest node within the configured radius
func (s *PathSearch) Snap(p Point) (Point, bool) {
	node, ok := s.nodes.FindNearest(p, s.cfg.SnapRadius)
	s.metrics.observeSnap(ok)
	return node, ok
}

func (s *PathSearch) heuristic(a, b Point) float64 {
	if s.cfg.Heuristic == HeuristicAdmissible {
		return a.Distance(b) * math.Min(1, s.cfg.BorderNodePriority)
	}
	return CombinedHeuristic(a, b)
}

func (s *PathSearch) stepCost(from, to NodeKey) float64 {
	cost := from.Point().Distance(to.Point())
	if s.graph.isBorderKey(to) {
		cost *= s.cfg.BorderNodePriority
	}
	return cost
}

// FindPath searches from start to goal for team. Nodes held by team are not
// entered. budget <= 0 uses MaxPathfindingTime.
func (s *PathSearch) FindPath(start, goal Point, team TeamID, budget time.Duration) Route {
	began := s.now()
	route := s.findPath(began, start, goal, team, budget)
	route.Elapsed = s.now().Sub(began)
	s.metrics.observeSearch(route)
	return route
}

func (s *PathSearch) findPath(began time.Time, start, goal Point, team TeamID, budget time.Duration) Route {
	if budget <= 0 {
		budget = s.cfg.MaxPathfindingTime
	}

	startNode, ok := s.Snap(start)
	if !ok {
		return Route{Outcome: Unsnappable}
	}
	goalNode, ok := s.Snap(goal)
	if !ok {
		return Route{Outcome: Unsnappable}
	}

	startKey, goalKey := KeyOf(startNode), KeyOf(goalNode)
	if startKey == goalKey {
		return Route{Path: []Point{startNode}, Outcome: Found}
	}

	gScore := map[NodeKey]float64{startKey: 0}
	cameFrom := make(map[NodeKey]NodeKey)

	open := NewFrontier[NodeKey](64)
	open.Push(startKey, s.heuristic(startNode, goalNode))

	expanded := 0
	for open.Len() > 0 {
		if budget > 0 && s.now().Sub(began) > budget {
			return Route{Outcome: Timeout, Expanded: expanded}
		}

		current, _ := open.PopMin()
		expanded++

		// Check if we reached the goal
		if current == goalKey {
			return Route{
				Path:     s.reconstruct(cameFrom, startKey, goalKey),
				Outcome:  Found,
				Cost:     gScore[goalKey],
				Expanded: expanded,
			}
		}

		currentG := gScore[current]
		for _, next := range s.graph.neighborKeys(current) {
			nextPoint := next.Point()
			if s.occupancy != nil && s.occupancy.IsOccupiedByTeam(nextPoint, team) {
				continue
			}

			tentativeG := currentG + s.stepCost(current, next)
			if known, seen := gScore[next]; seen && tentativeG >= known {
				continue
			}

			// Found a better path to this neighbor; it may have been expanded before
			gScore[next] = tentativeG
			cameFrom[next] = current
			f := tentativeG + s.heuristic(nextPoint, goalNode)
			if open.Contains(next) {
				open.DecreasePriority(next, f)
			} else {
				open.Push(next, f)
			}
		}
	}

	return Route{Outcome: NoRoute, Expanded: expanded}
}

// reconstruct walks predecessor links back from goal. A chain longer than
// the graph means the links form a cycle.
func (s *PathSearch) reconstruct(cameFrom map[NodeKey]NodeKey, start, goal NodeKey) []Point {
	path := []Point{goal.Point()}
	for node := goal; node != start; {
		prev, ok := cameFrom[node]
		if !ok {
			panic(fmt.Sprintf("astar: node %v has no predecessor", node.Point()))
		}
		if len(path) > s.graph.Len() {
			panic("astar: predecessor chain longer than the graph")
		}
		path = append(path, prev.Point())
		node = prev
	}
	slices.Reverse(path)
	return path
}
