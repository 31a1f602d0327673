package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics keeps a private registry so tests can run multiple servers in
// one process without collector collisions.
type Metrics struct {
	registry *prometheus.Registry

	Requests   *prometheus.CounterVec
	StressJobs *prometheus.CounterVec
}

func NewMetrics(activeJobs func() int64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmstress_requests_total",
			Help: "Content requests served, by endpoint.",
		}, []string{"endpoint"}),
		StressJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmstress_stress_jobs_total",
			Help: "Saturation jobs accepted, by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.Requests,
		m.StressJobs,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "swarmstress_stress_jobs_active",
			Help: "Saturation jobs currently holding resources.",
		}, func() float64 { return float64(activeJobs()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// handleMetrics is the JSON metrics surface the fairness poller scrapes.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.tally.Snapshot()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	writeJSON(w, http.StatusOK, map[string]any{
		"server_id":      snap.InstanceID,
		"total_requests": snap.Total,
		"instances":      snap.Instances,
		"by_endpoint":    snap.ByEndpoint,
		"stress": map[string]any{
			"active_jobs": s.stress.ActiveJobs(),
		},
		"runtime": map[string]any{
			"heap_alloc_mb":  ms.HeapAlloc >> 20,
			"heap_sys_mb":    ms.HeapSys >> 20,
			"num_gc":         ms.NumGC,
			"goroutines":     runtime.NumGoroutine(),
			"num_cpu":        runtime.NumCPU(),
			"uptime_seconds": time.Since(s.start).Seconds(),
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleRequestStats reports the fairness tally alone, without runtime
// noise.
func (s *Server) handleRequestStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tally.Snapshot())
}
