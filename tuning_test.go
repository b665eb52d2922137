package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultTuning_IsValid(t *testing.T) {
	tn := DefaultTuning()
	require.NoError(t, tn.Validate())

	assert.Equal(t, DefaultSearchConfig(), tn.SearchConfig())
	assert.Equal(t, DefaultOccupancyConfig(), tn.OccupancyConfig())
	assert.Equal(t, ":8080", tn.Server.Addr)
}

func TestLoadTuning_PartialOverride(t *testing.T) {
	path := writeTuning(t, `
pathfinding:
  border_node_priority: 0.25
  max_pathfinding_time: 0.5
  heuristic: admissible
occupancy:
  rebuild_interval: 10
server:
  addr: "127.0.0.1:9090"
`)
	tn, err := LoadTuning(path)
	require.NoError(t, err)

	sc := tn.SearchConfig()
	assert.Equal(t, 0.25, sc.BorderNodePriority)
	assert.Equal(t, 500*time.Millisecond, sc.MaxPathfindingTime)
	assert.Equal(t, HeuristicAdmissible, sc.Heuristic)
	assert.Equal(t, 3.0, sc.SnapRadius) // untouched

	oc := tn.OccupancyConfig()
	assert.Equal(t, 10, oc.RebuildInterval)
	assert.Equal(t, 0.2, oc.RebuildThreshold)

	assert.Equal(t, "127.0.0.1:9090", tn.Server.Addr)
	assert.Equal(t, "nodes_neighbors.json", tn.Server.GraphPath)
}

func TestLoadTuning_Invalid(t *testing.T) {
	cases := map[string]string{
		"zero priority":     "pathfinding:\n  border_node_priority: 0\n",
		"negative time":     "pathfinding:\n  max_pathfinding_time: -1\n",
		"unknown heuristic": "pathfinding:\n  heuristic: manhattan\n",
		"zero interval":     "occupancy:\n  rebuild_interval: 0\n",
		"threshold above 1": "occupancy:\n  rebuild_threshold: 1.5\n",
		"zero threshold":    "occupancy:\n  rebuild_threshold: 0\n",
		"negative epsilon":  "occupancy:\n  moved_epsilon: -0.1\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTuning(writeTuning(t, body))
			require.ErrorIs(t, err, ErrInvalidTuning)
		})
	}
}

func TestTuning_ValidateReportsEveryProblem(t *testing.T) {
	tn := DefaultTuning()
	tn.Pathfinding.BorderNodePriority = -1
	tn.Occupancy.RebuildInterval = 0

	err := tn.Validate()
	require.ErrorIs(t, err, ErrInvalidTuning)
	assert.Contains(t, err.Error(), "border_node_priority")
	assert.Contains(t, err.Error(), "rebuild_interval")
}

func TestLoadTuning_Errors(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadTuning(writeTuning(t, "pathfinding: [1, 2\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidTuning)
}
