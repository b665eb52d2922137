package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arena-navigator",
		Short: "Team-aware pathfinding and occupancy server for arena bots",
		Long: `arena-navigator loads a precomputed navigation graph and answers
nearest-node, path and proximity queries for teams of moving agents.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("graph", "", "Graph snapshot (.json or .json.zst); overrides server.graph_path")
	rootCmd.PersistentFlags().String("tuning", "", "YAML tuning file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address; overrides server.addr")

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Find one path and print it",
		RunE:  runRoute,
	}
	routeCmd.Flags().String("from", "", "Start position x,y")
	routeCmd.Flags().String("to", "", "Goal position x,y")
	routeCmd.Flags().Int("team", 0, "Requesting team")
	routeCmd.Flags().Duration("timeout", 0, "Search budget (default from tuning)")
	routeCmd.Flags().Bool("geojson", false, "Print the route as a GeoJSON feature")
	routeCmd.Flags().Float64("simplify", 0, "Waypoint tolerance; 0 keeps every node")
	routeCmd.Flags().Float64("context", 0, "With --geojson, also emit graph edges within this margin of the endpoints")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print graph statistics, or the nodes inside a bounding box",
		RunE:  runInspect,
	}
	inspectCmd.Flags().String("bbox", "", "minX,minY,maxX,maxY")
	inspectCmd.Flags().String("near", "", "List the nodes closest to x,y")
	inspectCmd.Flags().Int("k", 5, "Number of nodes for --near")

	packCmd := &cobra.Command{
		Use:   "pack",
		Short: "Validate a snapshot and rewrite it (zstd when --out ends in .zst)",
		RunE:  runPack,
	}
	packCmd.Flags().String("in", "", "Input snapshot")
	packCmd.Flags().String("out", "", "Output snapshot")
	_ = packCmd.MarkFlagRequired("in")
	_ = packCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(serveCmd, routeCmd, inspectCmd, packCmd)
	return rootCmd
}

// loadTuning returns defaults, or the --tuning file over the defaults
func loadTuning(cmd *cobra.Command) (Tuning, error) {
	path, err := cmd.Flags().GetString("tuning")
	if err != nil {
		return Tuning{}, err
	}
	if path == "" {
		return DefaultTuning(), nil
	}
	t, err := LoadTuning(path)
	if err != nil {
		return t, fmt.Errorf("failed to load tuning: %w", err)
	}
	return t, nil
}

// loadEngine reads tuning and graph and builds an Engine
func loadEngine(cmd *cobra.Command, metrics *Metrics) (*Engine, error) {
	t, err := loadTuning(cmd)
	if err != nil {
		return nil, err
	}
	if graphPath, _ := cmd.Flags().GetString("graph"); graphPath != "" {
		t.Server.GraphPath = graphPath
	}

	g, err := LoadGraph(t.Server.GraphPath)
	if err != nil {
		return nil, err
	}
	return NewEngine(g, t, metrics), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("========================================")
	log.Println("🚀 Arena Navigator Server")
	log.Println("========================================")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(reg)

	engine, err := loadEngine(cmd, metrics)
	if err != nil {
		log.Printf("❌ %v\n", err)
		return err
	}

	t := engine.Tuning()
	addr := t.Server.Addr
	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		addr = a
	}

	log.Printf("   Border node priority: %.2f\n", t.Pathfinding.BorderNodePriority)
	log.Printf("   Search budget:        %.2fs\n", t.Pathfinding.MaxPathfindingTime)
	log.Printf("   Snap radius:          %.2f\n", t.Pathfinding.SnapRadius)
	log.Printf("   Heuristic:            %s\n", t.Pathfinding.Heuristic)
	log.Printf("   Rebuild every %d updates at %.0f%% moved\n",
		t.Occupancy.RebuildInterval, t.Occupancy.RebuildThreshold*100)
	log.Println("")
	log.Printf("Server starting on %s\n", addr)
	log.Println("")
	log.Println("Endpoints:")
	log.Println("  POST /route                - Compute route between two positions for a team")
	log.Println("  POST /agents/update        - Report an agent move")
	log.Println("  POST /agents/remove        - Drop an agent")
	log.Println("  POST /agents/nearestEnemy  - Closest agent of another team")
	log.Println("  POST /agents/within        - Agents inside a radius")
	log.Println("  POST /agents/rebuild       - Rebalance the agent index now")
	log.Println("  GET  /agents/ws            - Websocket stream for agent controllers")
	log.Println("  GET  /graphLines           - Graph edges as GeoJSON")
	log.Println("  GET  /health               - Check server status")
	log.Println("  GET  /metrics              - Prometheus metrics")
	log.Println("")
	log.Println("CORS enabled for all origins")
	log.Println("========================================")
	log.Println("")

	return NewServer(engine, metrics, reg).ListenAndServe(addr)
}

func runRoute(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine(cmd, nil)
	if err != nil {
		return err
	}

	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	team, _ := cmd.Flags().GetInt("team")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	asGeoJSON, _ := cmd.Flags().GetBool("geojson")
	simplify, _ := cmd.Flags().GetFloat64("simplify")
	margin, _ := cmd.Flags().GetFloat64("context")

	from, err := parsePoint(fromFlag)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parsePoint(toFlag)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	route := engine.FindPath(from, to, TeamID(team), timeout)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if asGeoJSON {
		shown := route
		shown.Path = SimplifyRoute(route.Path, simplify)
		if margin <= 0 {
			return enc.Encode(RouteFeature(shown))
		}

		bound := RouteBoundingBox(from, to, margin)
		fc := GraphLinesCollection(engine.Graph, engine.Region, &bound)
		fc.Append(RouteFeature(shown))
		return enc.Encode(fc)
	}

	resp := routeResponse(route)
	if resp.Success && simplify > 0 {
		resp.Waypoints = SimplifyRoute(route.Path, simplify)
	}
	return enc.Encode(struct {
		RouteResponse
		ElapsedMs float64 `json:"elapsedMs"`
	}{resp, float64(route.Elapsed) / float64(time.Millisecond)})
}

func runInspect(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine(cmd, nil)
	if err != nil {
		return err
	}
	g := engine.Graph
	out := cmd.OutOrStdout()

	if nearFlag, _ := cmd.Flags().GetString("near"); nearFlag != "" {
		p, err := parsePoint(nearFlag)
		if err != nil {
			return fmt.Errorf("invalid --near: %w", err)
		}
		k, _ := cmd.Flags().GetInt("k")
		for _, n := range engine.Region.Nearest(p, k) {
			fmt.Fprintf(out, "(%.1f, %.1f) at %.3f\n", n.X, n.Y, n.Distance(p))
		}
		return nil
	}

	bboxFlag, _ := cmd.Flags().GetString("bbox")
	if bboxFlag == "" {
		b := g.Bounds()
		fmt.Fprintf(out, "nodes:   %d\n", g.Len())
		fmt.Fprintf(out, "borders: %d\n", g.BorderCount())
		fmt.Fprintf(out, "edges:   %d (directed)\n", g.EdgeCount())
		fmt.Fprintf(out, "lines:   %d (undirected)\n", len(g.Lines()))
		fmt.Fprintf(out, "bounds:  (%.1f, %.1f) to (%.1f, %.1f)\n", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
		return nil
	}

	v, err := parseFloats(bboxFlag, 4)
	if err != nil {
		return fmt.Errorf("invalid --bbox: %w", err)
	}
	bound := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	for _, p := range engine.Region.QueryRegion(bound) {
		border := ""
		if g.IsBorder(p) {
			border = " border"
		}
		fmt.Fprintf(out, "(%.1f, %.1f)%s -> %d neighbors\n", p.X, p.Y, border, len(g.Neighbors(p)))
	}
	return nil
}

func runPack(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")

	g, err := LoadGraph(in)
	if err != nil {
		return err
	}
	return SaveGraph(g, out)
}

func parsePoint(s string) (Point, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return Point{}, err
	}
	return Point{X: v[0], Y: v[1]}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
