package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxGoroutines fails the liveness check; the shell runs a handful.
const maxGoroutines = 1000

// Server provides HTTP endpoints for Prometheus metrics and health checks.
type Server struct {
	addr     string
	server   *http.Server
	health   healthcheck.Handler
	listener net.Listener
	logger   *slog.Logger
}

// NewServer creates a new metrics server. Health check results are
// exported on registry as well.
func NewServer(addr string, registry *prometheus.Registry, logger *slog.Logger) *Server {
	health := healthcheck.NewMetricsHandler(registry, namespace)
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Liveness
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/healthz", health.LiveEndpoint)

	// Readiness
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	mux.HandleFunc("/readyz", health.ReadyEndpoint)

	return &Server{
		addr:   addr,
		health: health,
		logger: logger,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// AddReadinessCheck registers a check that must pass for /ready to
// return 200. Call before Start.
func (s *Server) AddReadinessCheck(name string, check func() error) {
	s.health.AddReadinessCheck(name, check)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the address and serves in a goroutine.
// Returns once the listener is open. Use Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.logger.Info("metrics_server_starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics_server_error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("metrics_server_shutting_down")
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
