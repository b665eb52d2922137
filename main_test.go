package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the command tree with args and returns what it printed
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeGridSnapshot saves a w x h grid graph and returns its path
func writeGridSnapshot(t *testing.T, w, h int) (string, *NavGraph) {
	t.Helper()
	g := buildGrid(t, w, h, nil)
	path := filepath.Join(t.TempDir(), "grid.json")
	require.NoError(t, SaveGraph(g, path))
	return path, g
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("1,2")
	require.NoError(t, err)
	assert.Equal(t, pt(1, 2), p)

	p, err = parsePoint(" 1.5 , -2 ")
	require.NoError(t, err)
	assert.Equal(t, pt(1.5, -2), p)

	for _, bad := range []string{"", "1", "1,2,3", "a,b"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFloats(t *testing.T) {
	v, err := parseFloats("0,0,4,2.5", 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 4, 2.5}, v)

	_, err = parseFloats("0,0,4", 4)
	assert.ErrorContains(t, err, "expected 4")
}

func TestCLI_Route(t *testing.T) {
	graph, _ := writeGridSnapshot(t, 3, 3)

	out, err := runCLI(t, "route", "--graph", graph, "--from", "0,0", "--to", "2,0", "--team", "1")
	require.NoError(t, err)

	var got routeReply
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "found", got.Outcome)
	assert.Equal(t, []Point{pt(0, 0), pt(1, 0), pt(2, 0)}, got.Path)
	assert.InDelta(t, 2, got.Cost, 1e-9)
	assert.Empty(t, got.Waypoints)

	out, err = runCLI(t, "route", "--graph", graph, "--from", "0,0", "--to", "2,0", "--simplify", "0.01")
	require.NoError(t, err)
	got = routeReply{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []Point{pt(0, 0), pt(2, 0)}, got.Waypoints)
	assert.Len(t, got.Path, 3)
}

func TestCLI_RouteGeoJSONWithContext(t *testing.T) {
	graph, _ := writeGridSnapshot(t, 3, 3)

	out, err := runCLI(t, "route", "--graph", graph, "--from", "0,0", "--to", "2,0", "--geojson", "--context", "1")
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection([]byte(out))
	require.NoError(t, err)
	require.Greater(t, len(fc.Features), 1)

	route := fc.Features[len(fc.Features)-1]
	assert.Equal(t, "LineString", route.Geometry.GeoJSONType())
}

func TestCLI_RouteRejectsBadInput(t *testing.T) {
	graph, _ := writeGridSnapshot(t, 3, 3)

	_, err := runCLI(t, "route", "--graph", graph, "--from", "nope", "--to", "2,0")
	assert.ErrorContains(t, err, "invalid --from")

	_, err = runCLI(t, "route", "--graph", graph, "--from", "0,0")
	assert.Error(t, err)

	_, err = runCLI(t, "route", "--graph", filepath.Join(t.TempDir(), "missing.json"), "--from", "0,0", "--to", "1,0")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCLI_Inspect(t *testing.T) {
	graph, _ := writeGridSnapshot(t, 3, 3)

	out, err := runCLI(t, "inspect", "--graph", graph)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes:   9")
	assert.Contains(t, out, "edges:   24 (directed)")
	assert.Contains(t, out, "lines:   12 (undirected)")

	out, err = runCLI(t, "inspect", "--graph", graph, "--bbox", "0,0,1,0")
	require.NoError(t, err)
	assert.Equal(t, "(0.0, 0.0) -> 2 neighbors\n(1.0, 0.0) -> 3 neighbors\n", out)

	out, err = runCLI(t, "inspect", "--graph", graph, "--near", "0.1,0.1", "--k", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "(0.0, 0.0) at 0.141"), lines[0])

	_, err = runCLI(t, "inspect", "--graph", graph, "--bbox", "0,0,1")
	assert.ErrorContains(t, err, "invalid --bbox")
}

func TestCLI_PackCompresses(t *testing.T) {
	in, g := writeGridSnapshot(t, 4, 3)
	out := filepath.Join(t.TempDir(), "grid.json.zst")

	_, err := runCLI(t, "pack", "--in", in, "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, zstdMagic))

	packed, err := LoadGraph(out)
	require.NoError(t, err)
	assert.Equal(t, g.AllNodes(), packed.AllNodes())
	assert.Equal(t, g.EdgeCount(), packed.EdgeCount())
}
