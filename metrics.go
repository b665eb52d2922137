package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the navigator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	searchTotal    *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	searchExpanded prometheus.Histogram
	routeLength    prometheus.Histogram

	snapTotal *prometheus.CounterVec

	claimTotal   prometheus.Counter
	releaseTotal prometheus.Counter
	rebuildTotal prometheus.Counter
	discarded    prometheus.Counter
	agents       prometheus.Gauge

	wsSessions prometheus.Gauge
}

// NewMetrics registers all collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Labels: "found", "unsnappable", "timeout", "no_route"
		searchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navigator_search_total",
			Help: "Total path searches by outcome",
		}, []string{"outcome"}),

		searchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navigator_search_duration_seconds",
			Help:    "Path search wall-clock duration",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 2},
		}, []string{"outcome"}),

		searchExpanded: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "navigator_search_expanded_nodes",
			Help:    "Nodes expanded per path search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		routeLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "navigator_route_nodes",
			Help:    "Nodes in returned routes",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),

		snapTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navigator_snap_total",
			Help: "Nearest-node snaps by result",
		}, []string{"result"}),

		claimTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "navigator_occupancy_claims_total",
			Help: "Node claims made by agent updates",
		}),

		releaseTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "navigator_occupancy_releases_total",
			Help: "Node claims released",
		}),

		rebuildTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "navigator_occupancy_rebuilds_total",
			Help: "Agent tree rebuilds",
		}),

		discarded: f.NewCounter(prometheus.CounterOpts{
			Name: "navigator_occupancy_tombstones_discarded_total",
			Help: "Dead agent tree nodes dropped by rebuilds",
		}),

		agents: f.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_tracked_agents",
			Help: "Agents currently tracked by the occupancy index",
		}),

		wsSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "navigator_ws_sessions",
			Help: "Open agent websocket sessions",
		}),
	}
}

func (m *Metrics) observeSearch(r Route) {
	if m == nil {
		return
	}
	label := r.Outcome.label()
	m.searchTotal.WithLabelValues(label).Inc()
	m.searchDuration.WithLabelValues(label).Observe(r.Elapsed.Seconds())
	m.searchExpanded.Observe(float64(r.Expanded))
	if r.Outcome == Found {
		m.routeLength.Observe(float64(len(r.Path)))
	}
}

func (m *Metrics) observeSnap(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.snapTotal.WithLabelValues("hit").Inc()
	} else {
		m.snapTotal.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) claim() {
	if m != nil {
		m.claimTotal.Inc()
	}
}

func (m *Metrics) release() {
	if m != nil {
		m.releaseTotal.Inc()
	}
}

func (m *Metrics) rebuild(agents, discarded int) {
	if m == nil {
		return
	}
	m.rebuildTotal.Inc()
	m.discarded.Add(float64(discarded))
	m.agents.Set(float64(agents))
}

func (m *Metrics) setAgents(n int) {
	if m != nil {
		m.agents.Set(float64(n))
	}
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.wsSessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.wsSessions.Dec()
	}
}
