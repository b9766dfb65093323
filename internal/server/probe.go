package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/server/middleware"
)

const (
	// DefaultProbeAddr is the default listen address of the probe server.
	DefaultProbeAddr = ":9090"

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

// ProbeServerConfig configures the probe server.
type ProbeServerConfig struct {
	// Addr defaults to DefaultProbeAddr.
	Addr    string
	Version string

	// Readiness gates /readyz; nil checks only the local state.
	Readiness ReadinessCheck

	// InstrumentationProvider serves /metrics when it runs the Prometheus
	// exporter. May be nil.
	InstrumentationProvider *instrumentation.Provider

	// EnableHSTS is passed to the security headers middleware.
	EnableHSTS bool

	Logger *slog.Logger
}

// ProbeServer exposes /healthz, /readyz and /metrics for long-running
// commands such as watch and logs -f.
type ProbeServer struct {
	addr   string
	health *HealthChecker
	server *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewProbeServer builds the server without listening.
func NewProbeServer(config ProbeServerConfig) *ProbeServer {
	addr := config.Addr
	if addr == "" {
		addr = DefaultProbeAddr
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := NewHealthChecker(config.Version, config.Readiness, config.InstrumentationProvider)

	mux := http.NewServeMux()
	health.RegisterHealthEndpoints(mux)
	if h := config.InstrumentationProvider.MetricsHandler(); h != nil {
		mux.Handle("/metrics", h)
	}

	var handler http.Handler = mux
	handler = middleware.MethodGuard(handler)
	handler = middleware.SecurityHeaders(middleware.SecurityHeadersConfig{EnableHSTS: config.EnableHSTS})(handler)
	handler = middleware.AccessLog(logger)(handler)

	return &ProbeServer{
		addr:   addr,
		health: health,
		logger: logger,
		// Create HTTP server with security timeouts
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Addr returns the configured listen address, or the bound address once
// Listen has succeeded.
func (s *ProbeServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Health returns the checker behind /healthz and /readyz.
func (s *ProbeServer) Health() *HealthChecker {
	return s.health
}

// Handler returns the fully wrapped probe handler.
func (s *ProbeServer) Handler() http.Handler {
	return s.server.Handler
}

// Listen binds the listen address.
func (s *ProbeServer) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return nil
}

// Serve serves on the bound listener until Shutdown, binding first if
// Listen was not called. It returns nil after a clean shutdown.
func (s *ProbeServer) Serve() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		l = s.listener
		s.mu.Unlock()
	}

	s.logger.Info("probe server started", "addr", l.Addr().String(),
		"endpoints", []string{"/healthz", "/readyz", "/metrics"})

	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *ProbeServer) Run(ctx context.Context) error {
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.Serve()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverDone
	case err := <-serverDone:
		return err
	}
}

// Shutdown marks the server not ready and stops it. Calling it without a
// prior Serve is fine.
func (s *ProbeServer) Shutdown(ctx context.Context) error {
	s.health.MarkStopping()
	s.logger.Info("stopping probe server")
	return s.server.Shutdown(ctx)
}
