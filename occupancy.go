package main

import (
	"fmt"
	"math"
	"slices"
)

// AgentID identifies one bot
type AgentID string

// TeamID identifies the team an agent fights for
type TeamID int

// AgentState is the tracked record of one agent
type AgentState struct {
	ID       AgentID `json:"agent"`
	Position Point   `json:"position"`
	Team     TeamID  `json:"team"`
}

// OccupancyConfig controls when the agent tree is rebalanced
type OccupancyConfig struct {
	RebuildInterval  int     // updates between rebuild checks
	RebuildThreshold float64 // fraction of agents that must have moved
	MovedEpsilon     float64 // a move farther than this counts as significant
}

// DefaultOccupancyConfig mirrors the bot manager defaults
func DefaultOccupancyConfig() OccupancyConfig {
	return OccupancyConfig{
		RebuildInterval:  50,
		RebuildThreshold: 0.2,
		MovedEpsilon:     0.1,
	}
}

// OccupancyHooks are optional callbacks fired on claim changes and rebuilds
type OccupancyHooks struct {
	OnClaim   func(node Point, agent AgentID, team TeamID)
	OnRelease func(node Point, agent AgentID)
	OnRebuild func(agents, discarded int)
}

// TeamFilter selects agents by team in AgentsWithin. A nil filter accepts all.
type TeamFilter func(TeamID) bool

// AnyTeam accepts every agent
var AnyTeam TeamFilter

// SameTeam accepts agents of team t
func SameTeam(t TeamID) TeamFilter {
	return func(other TeamID) bool { return other == t }
}

// OtherTeams accepts agents not on team t
func OtherTeams(t TeamID) TeamFilter {
	return func(other TeamID) bool { return other != t }
}

// occupant is the claim one agent holds on a node
type occupant struct {
	agent AgentID
	team  TeamID
}

// agentRecord links an agent to its live tree node and its claimed node
type agentRecord struct {
	node  *agentNode
	claim NodeKey
}

// OccupancyStats describes the current state of the index
type OccupancyStats struct {
	Agents            int `json:"agents"`
	OccupiedNodes     int `json:"occupiedNodes"`
	TreeNodes         int `json:"treeNodes"`
	Tombstones        int `json:"tombstones"`
	TreeHeight        int `json:"treeHeight"`
	Rebuilds          int `json:"rebuilds"`
	PendingUpdates    int `json:"pendingUpdates"`
	MovedSinceRebuild int `json:"movedSinceRebuild"`
}

// OccupancyIndex tracks which node each agent stands on and answers
// proximity queries over agents. It is not safe for concurrent use.
type OccupancyIndex struct {
	cfg   OccupancyConfig
	hooks OccupancyHooks

	occupied map[NodeKey]occupant
	agents   map[AgentID]*agentRecord
	tree     agentTree

	updates  int // update calls since the last rebuild check
	moved    int // significant moves and removals since the last check
	rebuilds int
}

// NewOccupancyIndex creates an empty index
func NewOccupancyIndex(cfg OccupancyConfig, hooks OccupancyHooks) *OccupancyIndex {
	ix := &OccupancyIndex{
		hooks:    hooks,
		occupied: make(map[NodeKey]occupant),
		agents:   make(map[AgentID]*agentRecord),
	}
	ix.SetRebuildInterval(cfg.RebuildInterval)
	ix.SetRebuildThreshold(cfg.RebuildThreshold)
	ix.cfg.MovedEpsilon = math.Max(0, cfg.MovedEpsilon)
	return ix
}

// SetRebuildInterval sets how many updates pass between rebuild checks (min 1)
func (ix *OccupancyIndex) SetRebuildInterval(interval int) {
	ix.cfg.RebuildInterval = max(1, interval)
}

// SetRebuildThreshold sets the moved fraction that triggers a rebuild, clamped to [0,1]
func (ix *OccupancyIndex) SetRebuildThreshold(threshold float64) {
	ix.cfg.RebuildThreshold = math.Min(1, math.Max(0, threshold))
}

// Update moves agent from oldPos to newPos and claims the new node for team.
// Equal positions are a no-op. Releasing a node the agent never held is a no-op.
func (ix *OccupancyIndex) Update(agent AgentID, oldPos, newPos Point, team TeamID) {
	if oldPos == newPos {
		return
	}
	ix.release(KeyOf(oldPos), agent)
	ix.place(agent, newPos, team)
}

// register tracks an agent at pos without an old position to release.
// An agent that is already tracked is moved as by Update.
func (ix *OccupancyIndex) register(agent AgentID, pos Point, team TeamID) {
	if rec, ok := ix.agents[agent]; ok && rec.node.pos == pos {
		return
	}
	ix.place(agent, pos, team)
}

// place moves or inserts agent at newPos, claims its node and counts the update
func (ix *OccupancyIndex) place(agent AgentID, newPos Point, team TeamID) {
	if !newPos.IsFinite() {
		panic(fmt.Sprintf("occupancy: non-finite position (%v, %v) for agent %q", newPos.X, newPos.Y, agent))
	}

	if rec, ok := ix.agents[agent]; ok {
		ix.release(rec.claim, agent)
		if rec.node.pos.Distance(newPos) > ix.cfg.MovedEpsilon {
			ix.moved++
		}
		ix.tree.kill(rec.node)
	}

	node := &agentNode{id: agent, pos: newPos, team: team}
	ix.tree.insert(node)

	claim := KeyOf(newPos)
	ix.agents[agent] = &agentRecord{node: node, claim: claim}
	ix.claim(claim, agent, team)

	ix.updates++
	if ix.updates >= ix.cfg.RebuildInterval {
		if ix.shouldRebuild() {
			ix.rebuild()
		}
		ix.updates = 0
		ix.moved = 0
	}
}

// Remove releases the agent's claims and stops tracking it.
// Unknown agents are ignored.
func (ix *OccupancyIndex) Remove(agent AgentID, pos Point) {
	ix.release(KeyOf(pos), agent)

	rec, ok := ix.agents[agent]
	if !ok {
		return
	}
	ix.release(rec.claim, agent)
	ix.tree.kill(rec.node)
	delete(ix.agents, agent)
	ix.moved++
}

func (ix *OccupancyIndex) claim(key NodeKey, agent AgentID, team TeamID) {
	ix.occupied[key] = occupant{agent: agent, team: team}
	if ix.hooks.OnClaim != nil {
		ix.hooks.OnClaim(key.Point(), agent, team)
	}
}

// release clears the claim on key only if agent holds it
func (ix *OccupancyIndex) release(key NodeKey, agent AgentID) {
	occ, ok := ix.occupied[key]
	if !ok || occ.agent != agent {
		return
	}
	delete(ix.occupied, key)
	if ix.hooks.OnRelease != nil {
		ix.hooks.OnRelease(key.Point(), agent)
	}
}

// shouldRebuild reports whether enough agents moved, or enough dead nodes
// piled up, to make a full rebuild worthwhile
func (ix *OccupancyIndex) shouldRebuild() bool {
	if ix.tree.dead > len(ix.agents) {
		return true
	}
	if len(ix.agents) == 0 {
		return false
	}
	movedRatio := float64(ix.moved) / float64(len(ix.agents))
	return movedRatio >= ix.cfg.RebuildThreshold
}

func (ix *OccupancyIndex) rebuild() {
	discarded := ix.tree.dead

	live := make([]*agentNode, 0, len(ix.agents))
	for _, rec := range ix.agents {
		live = append(live, rec.node)
	}
	ix.tree.rebuild(live)
	ix.rebuilds++

	if ix.hooks.OnRebuild != nil {
		ix.hooks.OnRebuild(len(live), discarded)
	}
}

// ForceRebuild rebalances the tree now and resets the rebuild counters
func (ix *OccupancyIndex) ForceRebuild() {
	ix.rebuild()
	ix.updates = 0
	ix.moved = 0
}

// Clear forgets every agent and claim
func (ix *OccupancyIndex) Clear() {
	clear(ix.occupied)
	clear(ix.agents)
	ix.tree.reset()
	ix.updates = 0
	ix.moved = 0
}

// IsOccupiedByTeam reports whether the node at p is claimed by team
func (ix *OccupancyIndex) IsOccupiedByTeam(p Point, team TeamID) bool {
	occ, ok := ix.occupied[KeyOf(p)]
	return ok && occ.team == team
}

// IsOccupied reports whether the node at p is claimed by anyone
func (ix *OccupancyIndex) IsOccupied(p Point) bool {
	_, ok := ix.occupied[KeyOf(p)]
	return ok
}

// OccupyingTeam returns the team holding the node at p
func (ix *OccupancyIndex) OccupyingTeam(p Point) (TeamID, bool) {
	occ, ok := ix.occupied[KeyOf(p)]
	return occ.team, ok
}

// NearestEnemy returns the closest agent whose team differs from team
func (ix *OccupancyIndex) NearestEnemy(p Point, team TeamID) (AgentState, bool) {
	n, _ := ix.tree.nearest(p, func(n *agentNode) bool { return n.team != team })
	if n == nil {
		return AgentState{}, false
	}
	return AgentState{ID: n.id, Position: n.pos, Team: n.team}, true
}

// DistanceToNearestEnemy is the distance to NearestEnemy, +Inf if there is none
func (ix *OccupancyIndex) DistanceToNearestEnemy(p Point, team TeamID) float64 {
	n, distSq := ix.tree.nearest(p, func(n *agentNode) bool { return n.team != team })
	if n == nil {
		return math.Inf(1)
	}
	return math.Sqrt(distSq)
}

// AgentsWithin lists agents within radius of p that pass filter, ordered by id
func (ix *OccupancyIndex) AgentsWithin(p Point, radius float64, filter TeamFilter) []AgentID {
	if radius < 0 {
		return nil
	}
	found := ix.tree.within(p, radius, func(n *agentNode) bool {
		return filter == nil || filter(n.team)
	})

	ids := make([]AgentID, len(found))
	for i, n := range found {
		ids[i] = n.id
	}
	slices.Sort(ids)
	return ids
}

// Agent returns the tracked state of one agent
func (ix *OccupancyIndex) Agent(id AgentID) (AgentState, bool) {
	rec, ok := ix.agents[id]
	if !ok {
		return AgentState{}, false
	}
	return AgentState{ID: id, Position: rec.node.pos, Team: rec.node.team}, true
}

// Len is the number of tracked agents
func (ix *OccupancyIndex) Len() int { return len(ix.agents) }

// Stats reports index counters
func (ix *OccupancyIndex) Stats() OccupancyStats {
	return OccupancyStats{
		Agents:            len(ix.agents),
		OccupiedNodes:     len(ix.occupied),
		TreeNodes:         ix.tree.size,
		Tombstones:        ix.tree.dead,
		TreeHeight:        ix.tree.height(),
		Rebuilds:          ix.rebuilds,
		PendingUpdates:    ix.updates,
		MovedSinceRebuild: ix.moved,
	}
}
