package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTuning is wrapped by every tuning validation failure
var ErrInvalidTuning = errors.New("invalid tuning")

type Tuning struct {
	Pathfinding PathfindingTuning `yaml:"pathfinding"`
	Occupancy   OccupancyTuning   `yaml:"occupancy"`
	Server      ServerTuning      `yaml:"server"`
}

type PathfindingTuning struct {
	BorderNodePriority float64       `yaml:"border_node_priority"`
	MaxPathfindingTime float64       `yaml:"max_pathfinding_time"` // seconds
	SnapRadius         float64       `yaml:"snap_radius"`
	Heuristic          HeuristicMode `yaml:"heuristic"`
}

type OccupancyTuning struct {
	RebuildInterval  int     `yaml:"rebuild_interval"`
	RebuildThreshold float64 `yaml:"rebuild_threshold"`
	MovedEpsilon     float64 `yaml:"moved_epsilon"`
}

type ServerTuning struct {
	Addr      string `yaml:"addr"`
	GraphPath string `yaml:"graph_path"`
}

func DefaultTuning() Tuning {
	search := DefaultSearchConfig()
	occ := DefaultOccupancyConfig()
	return Tuning{
		Pathfinding: PathfindingTuning{
			BorderNodePriority: search.BorderNodePriority,
			MaxPathfindingTime: search.MaxPathfindingTime.Seconds(),
			SnapRadius:         search.SnapRadius,
			Heuristic:          search.Heuristic,
		},
		Occupancy: OccupancyTuning{
			RebuildInterval:  occ.RebuildInterval,
			RebuildThreshold: occ.RebuildThreshold,
			MovedEpsilon:     occ.MovedEpsilon,
		},
		Server: ServerTuning{
			Addr:      ":8080",
			GraphPath: "nodes_neighbors.json",
		},
	}
}

// LoadTuning reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate checks every tunable against its allowed range
func (t Tuning) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidTuning}, args...)...))
	}

	p := t.Pathfinding
	if !(p.BorderNodePriority > 0) {
		bad("pathfinding.border_node_priority must be > 0, got %v", p.BorderNodePriority)
	}
	if !(p.MaxPathfindingTime > 0) {
		bad("pathfinding.max_pathfinding_time must be > 0, got %v", p.MaxPathfindingTime)
	}
	switch p.Heuristic {
	case HeuristicCombined, HeuristicAdmissible:
	default:
		bad("pathfinding.heuristic must be %q or %q, got %q", HeuristicCombined, HeuristicAdmissible, p.Heuristic)
	}

	o := t.Occupancy
	if o.RebuildInterval < 1 {
		bad("occupancy.rebuild_interval must be >= 1, got %d", o.RebuildInterval)
	}
	if !(o.RebuildThreshold > 0 && o.RebuildThreshold <= 1) {
		bad("occupancy.rebuild_threshold must be in (0,1], got %v", o.RebuildThreshold)
	}
	if !(o.MovedEpsilon >= 0) {
		bad("occupancy.moved_epsilon must be >= 0, got %v", o.MovedEpsilon)
	}

	return errors.Join(errs...)
}

// SearchConfig converts the pathfinding section
func (t Tuning) SearchConfig() SearchConfig {
	return SearchConfig{
		BorderNodePriority: t.Pathfinding.BorderNodePriority,
		MaxPathfindingTime: time.Duration(t.Pathfinding.MaxPathfindingTime * float64(time.Second)),
		SnapRadius:         t.Pathfinding.SnapRadius,
		Heuristic:          t.Pathfinding.Heuristic,
	}
}

// OccupancyConfig converts the occupancy section
func (t Tuning) OccupancyConfig() OccupancyConfig {
	return OccupancyConfig{
		RebuildInterval:  t.Occupancy.RebuildInterval,
		RebuildThreshold: t.Occupancy.RebuildThreshold,
		MovedEpsilon:     t.Occupancy.MovedEpsilon,
	}
}
