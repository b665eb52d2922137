package main

import (
	"time"
)

// Engine bundles everything built from one graph snapshot and one Tuning.
// It is not safe for concurrent use; Server adds the locking.
type Engine struct {
	Graph     *NavGraph
	Nodes     *NodeIndex
	Region    *RegionIndex
	Occupancy *OccupancyIndex
	Search    *PathSearch

	tuning  Tuning
	metrics *Metrics
}

// NewEngine indexes g and wires occupancy events into metrics (which may be nil)
func NewEngine(g *NavGraph, t Tuning, metrics *Metrics) *Engine {
	e := &Engine{
		Graph:   g,
		Nodes:   NewNodeIndex(g),
		Region:  NewRegionIndex(g),
		tuning:  t,
		metrics: metrics,
	}

	e.Occupancy = NewOccupancyIndex(t.OccupancyConfig(), OccupancyHooks{
		OnClaim:   func(Point, AgentID, TeamID) { metrics.claim() },
		OnRelease: func(Point, AgentID) { metrics.release() },
		OnRebuild: metrics.rebuild,
	})
	e.Search = NewPathSearch(g, e.Nodes, e.Occupancy, t.SearchConfig(), metrics)
	return e
}

// Tuning returns the tunables the engine was built with
func (e *Engine) Tuning() Tuning { return e.tuning }

// FindPath routes from start to goal for team. timeout <= 0 uses the configured budget.
func (e *Engine) FindPath(start, goal Point, team TeamID, timeout time.Duration) Route {
	return e.Search.FindPath(start, goal, team, timeout)
}

// UpdateAgent reports a move
func (e *Engine) UpdateAgent(agent AgentID, oldPos, newPos Point, team TeamID) {
	e.Occupancy.Update(agent, oldPos, newPos, team)
	e.metrics.setAgents(e.Occupancy.Len())
}

// RemoveAgent drops an agent and its claims
func (e *Engine) RemoveAgent(agent AgentID, pos Point) {
	e.Occupancy.Remove(agent, pos)
	e.metrics.setAgents(e.Occupancy.Len())
}

// MoveAgent is UpdateAgent using the last reported position as the old one.
// The first report for an agent just registers it.
func (e *Engine) MoveAgent(agent AgentID, newPos Point, team TeamID) {
	st, ok := e.Occupancy.Agent(agent)
	if !ok {
		e.Occupancy.register(agent, newPos, team)
		e.metrics.setAgents(e.Occupancy.Len())
		return
	}
	e.UpdateAgent(agent, st.Position, newPos, team)
}

// RouteToNearestEnemy finds the closest agent not on team and routes to it
func (e *Engine) RouteToNearestEnemy(from Point, team TeamID, timeout time.Duration) (AgentState, Route, bool) {
	enemy, ok := e.Occupancy.NearestEnemy(from, team)
	if !ok {
		return AgentState{}, Route{Outcome: NoRoute}, false
	}
	return enemy, e.FindPath(from, enemy.Position, team, timeout), true
}
