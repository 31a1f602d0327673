// Package server is the target web app: realistic content endpoints with
// simulated workload, the fairness tally, and the resource-saturation
// surface under /extreme.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"swarmstress/internal/stress"
	"swarmstress/internal/tally"
)

type Config struct {
	Port     int
	ServerID string
	Limits   stress.Limits
}

type Server struct {
	cfg     Config
	logger  *zap.Logger
	tally   *tally.Recorder
	stress  *stress.Manager
	metrics *Metrics

	router     chi.Router
	httpServer *http.Server
	start      time.Time
}

func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		tally:  tally.NewRecorder(cfg.ServerID),
		stress: stress.NewManager(logger, cfg.Limits),
		start:  time.Now(),
	}
	s.metrics = NewMetrics(s.stress.ActiveJobs)

	s.router = chi.NewRouter()
	s.router.Use(s.logRequests)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Content endpoints, all tallied and instrumented.
	r.Get("/", s.handle("homepage", s.handleHome))
	r.Get("/api/data", s.handle("api_data", s.handleAPIData))
	r.Get("/dashboard", s.handle("dashboard", s.handleDashboard))
	r.Get("/search", s.handle("search", s.handleSearch))
	r.Get("/product/{id}", s.handle("product", s.handleProduct))
	r.Get("/checkout", s.handle("checkout", s.handleCheckout))
	r.Post("/checkout", s.handle("checkout", s.handleCheckout))
	r.Get("/media/{id}", s.handle("media", s.handleMedia))

	// Saturation surface.
	r.Get("/extreme/cpu", s.handle("extreme_cpu", s.handleExtremeCPU))
	r.Get("/extreme/memory", s.handle("extreme_memory", s.handleExtremeMemory))
	r.Get("/extreme/cpu-mem", s.handle("extreme_cpu_mem", s.handleExtremeCPUMem))
	r.Get("/extreme/all", s.handle("extreme_all", s.handleExtremeAll))

	// Monitoring; not part of the fairness tally.
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/request-stats", s.handleRequestStats)
	r.Method(http.MethodGet, "/metrics/prometheus", s.metrics.Handler())
}

// handle wires one content endpoint through the fairness recorder and the
// prometheus request counter.
func (s *Server) handle(name string, h http.HandlerFunc) http.HandlerFunc {
	tracked := s.tally.Track(name, h)
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Requests.WithLabelValues(name).Inc()
		tracked(w, r)
	}
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Tally exposes the fairness recorder.
func (s *Server) Tally() *tally.Recorder { return s.tally }

// Stress exposes the saturation manager.
func (s *Server) Stress() *stress.Manager { return s.stress }

// Start serves until ctx is cancelled, then shuts down gracefully and
// releases every outstanding saturation job.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("target server listening",
		zap.Int("port", s.cfg.Port),
		zap.String("server_id", s.cfg.ServerID),
	)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutCtx)

	s.stress.Close()
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
