package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteRequest struct {
	Start     Point   `json:"start"`
	End       Point   `json:"end"`
	Team      TeamID  `json:"team"`
	TimeoutMs int     `json:"timeoutMs,omitempty"` // 0 uses the configured budget
	Simplify  float64 `json:"simplify,omitempty"`  // waypoint tolerance, 0 disables
}

type RouteResponse struct {
	Path      []Point `json:"path"`
	Waypoints []Point `json:"waypoints,omitempty"`
	Success   bool    `json:"success"`
	Outcome   Outcome `json:"outcome"`
	Message   string  `json:"message,omitempty"`
	Cost      float64 `json:"cost"`
	Expanded  int     `json:"expanded"`
}

type AgentUpdateRequest struct {
	Agent AgentID `json:"agent"`
	Old   Point   `json:"old"`
	New   Point   `json:"new"`
	Team  TeamID  `json:"team"`
}

type AgentRemoveRequest struct {
	Agent    AgentID `json:"agent"`
	Position Point   `json:"position"`
}

type NearestEnemyRequest struct {
	Position Point  `json:"position"`
	Team     TeamID `json:"team"`
}

type NearestEnemyResponse struct {
	Found    bool    `json:"found"`
	Agent    AgentID `json:"agent,omitempty"`
	Position *Point  `json:"position,omitempty"`
	Team     TeamID  `json:"team,omitempty"`
	Distance float64 `json:"distance,omitempty"`
}

type WithinRequest struct {
	Position Point   `json:"position"`
	Radius   float64 `json:"radius"`
	Team     TeamID  `json:"team"`
	Filter   string  `json:"filter,omitempty"` // any (default), same, other
}

type WithinResponse struct {
	Agents []AgentID `json:"agents"`
}

// Server exposes one Engine over HTTP. Route and proximity queries share a
// read lock; agent updates, removals and rebuilds take the write lock.
type Server struct {
	mu     sync.RWMutex
	engine *Engine

	metrics  *Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

func NewServer(e *Engine, metrics *Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{
		engine:   e,
		metrics:  metrics,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // CORS is open for all origins too
		},
	}
}

// Handler returns the routed endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/route", corsMiddleware(s.routeHandler))
	mux.HandleFunc("/agents/update", corsMiddleware(s.agentUpdateHandler))
	mux.HandleFunc("/agents/remove", corsMiddleware(s.agentRemoveHandler))
	mux.HandleFunc("/agents/nearestEnemy", corsMiddleware(s.nearestEnemyHandler))
	mux.HandleFunc("/agents/within", corsMiddleware(s.withinHandler))
	mux.HandleFunc("/agents/rebuild", corsMiddleware(s.rebuildHandler))
	mux.HandleFunc("/agents/ws", s.wsHandler)
	mux.HandleFunc("/graphLines", corsMiddleware(s.graphLinesHandler))
	mux.HandleFunc("/health", corsMiddleware(s.healthHandler))
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next(w, r.WithContext(withRequestID(r.Context(), reqID)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v\n", err)
	}
}

// decodePost checks the method and decodes the JSON body into v
func decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		log.Printf("❌ [%s] Method not allowed: %s\n", requestID(r.Context()), r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Printf("❌ [%s] Invalid request body: %v\n", requestID(r.Context()), err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// routeResponse converts a search result to its wire form
func routeResponse(route Route) RouteResponse {
	resp := RouteResponse{
		Path:     route.Path,
		Success:  route.Outcome == Found,
		Outcome:  route.Outcome,
		Cost:     route.Cost,
		Expanded: route.Expanded,
	}
	if resp.Path == nil {
		resp.Path = []Point{}
	}
	switch route.Outcome {
	case Unsnappable:
		resp.Message = "Start or end point is not within snap radius of any graph node"
	case Timeout:
		resp.Message = "Search exceeded its time budget"
	case NoRoute:
		resp.Message = "No path found on navigation graph"
	}
	return resp
}

func (s *Server) routeHandler(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r.Context())
	log.Println("========================================")
	log.Printf("📍 [%s] Route request received\n", reqID)

	var req RouteRequest
	if !decodePost(w, r, &req) {
		return
	}

	log.Printf("   Start: (%.2f, %.2f)\n", req.Start.X, req.Start.Y)
	log.Printf("   End:   (%.2f, %.2f)\n", req.End.X, req.End.Y)
	log.Printf("   Team:  %d\n", req.Team)

	s.mu.RLock()
	route := s.engine.FindPath(req.Start, req.End, req.Team, time.Duration(req.TimeoutMs)*time.Millisecond)
	s.mu.RUnlock()

	resp := routeResponse(route)
	if resp.Success && req.Simplify > 0 {
		resp.Waypoints = SimplifyRoute(route.Path, req.Simplify)
	}
	if resp.Success {
		log.Printf("✅ Path found with %d waypoints (cost %.2f, %d expanded, %v)\n",
			len(route.Path), route.Cost, route.Expanded, route.Elapsed)
	} else {
		log.Printf("❌ %s (%d expanded, %v)\n", resp.Message, route.Expanded, route.Elapsed)
	}

	writeJSON(w, http.StatusOK, resp)
	log.Println("========================================")
}

func (s *Server) agentUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req AgentUpdateRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.Agent == "" {
		http.Error(w, "agent is required", http.StatusBadRequest)
		return
	}
	if !req.New.IsFinite() {
		http.Error(w, "new position must be finite", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.engine.UpdateAgent(req.Agent, req.Old, req.New, req.Team)
	agents := s.engine.Occupancy.Len()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agents":  agents,
	})
}

func (s *Server) agentRemoveHandler(w http.ResponseWriter, r *http.Request) {
	var req AgentRemoveRequest
	if !decodePost(w, r, &req) {
		return
	}

	s.mu.Lock()
	s.engine.RemoveAgent(req.Agent, req.Position)
	agents := s.engine.Occupancy.Len()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agents":  agents,
	})
}

func (s *Server) nearestEnemy(p Point, team TeamID) NearestEnemyResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enemy, ok := s.engine.Occupancy.NearestEnemy(p, team)
	if !ok {
		return NearestEnemyResponse{}
	}
	return NearestEnemyResponse{
		Found:    true,
		Agent:    enemy.ID,
		Position: &enemy.Position,
		Team:     enemy.Team,
		Distance: enemy.Position.Distance(p),
	}
}

func (s *Server) nearestEnemyHandler(w http.ResponseWriter, r *http.Request) {
	var req NearestEnemyRequest
	if !decodePost(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.nearestEnemy(req.Position, req.Team))
}

// parseTeamFilter maps the wire filter name to a TeamFilter
func parseTeamFilter(name string, team TeamID) (TeamFilter, error) {
	switch name {
	case "", "any":
		return AnyTeam, nil
	case "same":
		return SameTeam(team), nil
	case "other":
		return OtherTeams(team), nil
	}
	return nil, fmt.Errorf("unknown filter %q", name)
}

func (s *Server) withinHandler(w http.ResponseWriter, r *http.Request) {
	var req WithinRequest
	if !decodePost(w, r, &req) {
		return
	}
	filter, err := parseTeamFilter(req.Filter, req.Team)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	agents := s.engine.Occupancy.AgentsWithin(req.Position, req.Radius, filter)
	s.mu.RUnlock()

	if agents == nil {
		agents = []AgentID{}
	}
	writeJSON(w, http.StatusOK, WithinResponse{Agents: agents})
}

func (s *Server) rebuildHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.engine.Occupancy.ForceRebuild()
	stats := s.engine.Occupancy.Stats()
	s.mu.Unlock()

	log.Printf("🔄 [%s] Agent index rebuilt: %d agents, height %d\n",
		requestID(r.Context()), stats.Agents, stats.TreeHeight)
	writeJSON(w, http.StatusOK, stats)
}

// GET /graphLines - graph edges as GeoJSON, optionally limited to a bounding box
func (s *Server) graphLinesHandler(w http.ResponseWriter, r *http.Request) {
	log.Println("========================================")
	log.Printf("📊 [%s] Get graph lines request received\n", requestID(r.Context()))

	if r.Method != http.MethodGet {
		log.Printf("❌ Method not allowed: %s\n", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bound, err := parseBound(r)
	if err != nil {
		log.Printf("❌ Invalid bounding box: %v\n", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The graph and region index are immutable, no lock needed
	fc := GraphLinesCollection(s.engine.Graph, s.engine.Region, bound)

	log.Printf("   Returning %d line segments\n", len(fc.Features))
	log.Println("========================================")

	writeJSON(w, http.StatusOK, fc)
}

// parseBound reads minX, minY, maxX, maxY query parameters. All four or none.
func parseBound(r *http.Request) (*orb.Bound, error) {
	q := r.URL.Query()
	names := []string{"minX", "minY", "maxX", "maxY"}

	present := 0
	for _, n := range names {
		if q.Has(n) {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(names) {
		return nil, fmt.Errorf("bounding box needs minX, minY, maxX and maxY")
	}

	var v [4]float64
	for i, n := range names {
		f, err := strconv.ParseFloat(q.Get(n), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", n, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return nil, fmt.Errorf("bounding box min exceeds max")
	}

	return &orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// GET /health - Health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stats := s.engine.Occupancy.Stats()
	s.mu.RUnlock()

	g := s.engine.Graph
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"numNodes":    g.Len(),
		"borderNodes": g.BorderCount(),
		"numEdges":    g.EdgeCount(),
		"agents":      stats.Agents,
		"occupancy":   stats,
	})
}

// ListenAndServe blocks serving on addr
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
