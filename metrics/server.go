package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-gbn/logger"
)

const (
	// MetricsPath serves the Prometheus exposition.
	MetricsPath = "/metrics"
	// HealthPath answers "OK" while the server runs.
	HealthPath = "/healthz"
)

// Server exposes a private Prometheus registry over HTTP.
type Server struct {
	addr     string
	registry *prometheus.Registry
	logger   logger.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a server for addr (e.g. ":9100"). The registry starts with
// the Go runtime and process collectors. A nil l selects the default logger.
func NewServer(addr string, l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		addr:     addr,
		registry: registry,
		logger:   l,
	}
}

// Register adds a collector to the server's registry.
func (s *Server) Register(c prometheus.Collector) error {
	return s.registry.Register(c)
}

// Handler returns the HTTP handler serving MetricsPath and HealthPath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("metrics: server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %q: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.httpServer = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "addr", ln.Addr().String(), "error", err)
		}
	}()

	s.logger.Info("metrics server started", "addr", ln.Addr().String(), "path", MetricsPath)

	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.addr
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}
