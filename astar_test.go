package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockedNodes marks a fixed set of nodes as held by one team
type blockedNodes struct {
	team TeamID
	keys map[NodeKey]bool
}

func (b blockedNodes) IsOccupiedByTeam(p Point, team TeamID) bool {
	return team == b.team && b.keys[KeyOf(p)]
}

func blockAt(team TeamID, pts ...Point) blockedNodes {
	b := blockedNodes{team: team, keys: make(map[NodeKey]bool)}
	for _, p := range pts {
		b.keys[KeyOf(p)] = true
	}
	return b
}

// tickingClock advances by step on every read
func tickingClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newTestSearch(g *NavGraph, occ OccupancyChecker) *PathSearch {
	return NewPathSearch(g, nil, occ, DefaultSearchConfig(), nil)
}

func TestFindPath_DirectRoute(t *testing.T) {
	g := buildGrid(t, 5, 5, nil)
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(0, 0), pt(4, 4), 1, 0)
	require.Equal(t, Found, r.Outcome)
	assert.Len(t, r.Path, 9)
	assert.Equal(t, pt(0, 0), r.Path[0])
	assert.Equal(t, pt(4, 4), r.Path[len(r.Path)-1])
	assert.InDelta(t, 8, r.Cost, 1e-12)
	assert.InDelta(t, r.Cost, pathCost(t, g, r.Path, 0.5), 1e-12)
	assert.Positive(t, r.Expanded)
}

func TestFindPath_MatchesDijkstraWithOccupiedNode(t *testing.T) {
	g := buildGrid(t, 3, 3, nil)
	occ := blockAt(1, pt(1, 1))
	s := newTestSearch(g, occ)

	for _, start := range g.AllNodes() {
		for _, goal := range g.AllNodes() {
			if start == goal || KeyOf(goal) == KeyOf(pt(1, 1)) {
				continue
			}
			want, ok := dijkstraCost(g, start, goal, 0.5, func(p Point) bool { return occ.IsOccupiedByTeam(p, 1) })
			require.True(t, ok)

			r := s.FindPath(start, goal, 1, 0)
			require.Equal(t, Found, r.Outcome, "%v -> %v", start, goal)
			assert.InDelta(t, want, r.Cost, 1e-9, "%v -> %v", start, goal)
			// a requester standing on (1,1) still starts there
			assert.NotContains(t, r.Path[1:], pt(1, 1))
		}
	}
}

func TestFindPath_RoutesAroundOwnTeam(t *testing.T) {
	g := buildGrid(t, 5, 5, nil)
	occ := NewOccupancyIndex(DefaultOccupancyConfig(), OccupancyHooks{})
	for y := 0; y < 4; y++ {
		occ.Update(AgentID(fmt.Sprint("a", y)), pt(-5, -5), pt(2, float64(y)), 1)
	}
	s := newTestSearch(g, occ)

	r := s.FindPath(pt(0, 0), pt(4, 0), 1, 0)
	require.Equal(t, Found, r.Outcome)
	assert.Contains(t, r.Path, pt(2, 4))
	for _, p := range r.Path {
		if p.X == 2 {
			assert.Equal(t, pt(2, 4), p)
		}
	}
	assert.InDelta(t, 12, r.Cost, 1e-12)

	// the same agents do not block another team
	r = s.FindPath(pt(0, 0), pt(4, 0), 2, 0)
	require.Equal(t, Found, r.Outcome)
	assert.InDelta(t, 4, r.Cost, 1e-12)
	assert.Contains(t, r.Path, pt(2, 0))
}

func TestFindPath_GoalHeldByOwnTeam(t *testing.T) {
	g := buildGrid(t, 3, 3, nil)
	s := newTestSearch(g, blockAt(1, pt(2, 2)))

	r := s.FindPath(pt(0, 0), pt(2, 2), 1, 0)
	assert.Equal(t, NoRoute, r.Outcome)
	assert.Nil(t, r.Path)

	r = s.FindPath(pt(0, 0), pt(2, 2), 2, 0)
	assert.Equal(t, Found, r.Outcome)
}

func TestFindPath_Unsnappable(t *testing.T) {
	g := buildGrid(t, 3, 3, nil)
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(0, 0), pt(50, 50), 1, 0)
	assert.Equal(t, Unsnappable, r.Outcome)
	assert.Nil(t, r.Path)

	r = s.FindPath(pt(-40, 0), pt(1, 1), 1, 0)
	assert.Equal(t, Unsnappable, r.Outcome)
}

func TestFindPath_SnapsEndpoints(t *testing.T) {
	g := buildGrid(t, 3, 3, nil)
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(0.4, 0.3), pt(2.2, -0.9), 1, 0)
	require.Equal(t, Found, r.Outcome)
	assert.Equal(t, pt(0, 0), r.Path[0])
	assert.Equal(t, pt(2, 0), r.Path[len(r.Path)-1])
}

func TestFindPath_StartEqualsGoal(t *testing.T) {
	g := buildGrid(t, 3, 3, nil)
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(1, 1), pt(1.2, 1.1), 1, 0)
	require.Equal(t, Found, r.Outcome)
	assert.Equal(t, []Point{pt(1, 1)}, r.Path)
	assert.Zero(t, r.Cost)
}

func TestFindPath_Disconnected(t *testing.T) {
	recs := append(gridRecords(3, 3, nil), NodeRecord{Position: pt(10, 10)})
	g, err := BuildGraph(recs)
	require.NoError(t, err)
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(0, 0), pt(10, 10), 1, 0)
	assert.Equal(t, NoRoute, r.Outcome)
	assert.Equal(t, 9, r.Expanded)
}

func TestFindPath_TimeoutWithFakeClock(t *testing.T) {
	g := buildGrid(t, 10, 10, nil)
	s := newTestSearch(g, nil)
	s.now = tickingClock(time.Millisecond)

	r := s.FindPath(pt(0, 0), pt(9, 9), 1, 5*time.Millisecond)
	assert.Equal(t, Timeout, r.Outcome)
	assert.Nil(t, r.Path)
	assert.Equal(t, 5, r.Expanded)
	assert.Equal(t, 7*time.Millisecond, r.Elapsed)

	// budget <= 0 falls back to the configured limit
	s.cfg.MaxPathfindingTime = 3 * time.Millisecond
	r = s.FindPath(pt(0, 0), pt(9, 9), 1, 0)
	assert.Equal(t, Timeout, r.Outcome)
	assert.Equal(t, 3, r.Expanded)
}

func TestFindPath_TimeoutOnLargeSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("large grid")
	}
	recs := append(gridRecords(200, 200, nil), NodeRecord{Position: pt(1000, 1000)})
	g, err := BuildGraph(recs)
	require.NoError(t, err)
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(0, 0), pt(1000, 1000), 1, time.Millisecond)
	assert.Equal(t, Timeout, r.Outcome)
	assert.Less(t, r.Expanded, g.Len())
}

func TestFindPath_PrefersBorderNodes(t *testing.T) {
	g := buildGrid(t, 3, 3, func(x, y int) bool { return x == 0 || y == 2 })
	s := newTestSearch(g, nil)

	r := s.FindPath(pt(0, 0), pt(2, 2), 1, 0)
	require.Equal(t, Found, r.Outcome)
	assert.Equal(t, []Point{pt(0, 0), pt(0, 1), pt(0, 2), pt(1, 2), pt(2, 2)}, r.Path)
	assert.InDelta(t, 2, r.Cost, 1e-12)
}

func TestFindPath_AdmissibleMatchesDijkstra(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g := randomGraph(t, rng, 300, 5, 60)
	nodes := g.AllNodes()

	blocked := make([]Point, 0)
	for _, p := range nodes {
		if rng.Intn(10) == 0 {
			blocked = append(blocked, p)
		}
	}
	occ := blockAt(1, blocked...)

	cfg := DefaultSearchConfig()
	cfg.Heuristic = HeuristicAdmissible
	cfg.MaxPathfindingTime = time.Minute
	s := NewPathSearch(g, nil, occ, cfg, nil)

	for i := 0; i < 60; i++ {
		start, goal := nodes[rng.Intn(len(nodes))], nodes[rng.Intn(len(nodes))]
		if start == goal {
			continue
		}
		want, ok := dijkstraCost(g, start, goal, cfg.BorderNodePriority, func(p Point) bool {
			return occ.IsOccupiedByTeam(p, 1)
		})

		r := s.FindPath(start, goal, 1, 0)
		if !ok {
			assert.Equal(t, NoRoute, r.Outcome, "%v -> %v", start, goal)
			continue
		}
		require.Equal(t, Found, r.Outcome, "%v -> %v", start, goal)
		assert.InDelta(t, want, r.Cost, 1e-9, "%v -> %v", start, goal)
		assert.InDelta(t, r.Cost, pathCost(t, g, r.Path, cfg.BorderNodePriority), 1e-9)
		for _, p := range r.Path[1:] {
			assert.False(t, occ.IsOccupiedByTeam(p, 1))
		}
	}
}

func TestNewPathSearch_DefaultsHeuristic(t *testing.T) {
	g := buildGrid(t, 2, 2, nil)
	s := NewPathSearch(g, nil, nil, SearchConfig{BorderNodePriority: 1, MaxPathfindingTime: time.Second}, nil)
	assert.Equal(t, HeuristicCombined, s.Config().Heuristic)

	r := s.FindPath(pt(0, 0), pt(1, 1), 0, 0)
	assert.Equal(t, Found, r.Outcome)
}

func TestOutcome_Text(t *testing.T) {
	for o, want := range map[Outcome]string{
		Found:       `"found"`,
		Unsnappable: `"unsnappable"`,
		Timeout:     `"timeout"`,
		NoRoute:     `"no route"`,
	} {
		raw, err := json.Marshal(o)
		require.NoError(t, err)
		assert.Equal(t, want, string(raw))
	}
	assert.Equal(t, "no_route", NoRoute.label())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
