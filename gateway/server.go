// Package gateway is the HTTP surface of the service: the viewer page, the
// aggregate JSON endpoint, the WebSocket live feed, health and metrics.
package gateway

import (
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/playerlist/health"
	"github.com/c360/playerlist/metric"
	"github.com/c360/playerlist/playerlist"
)

//go:embed web/index.html
var viewerPage []byte

// StatusProvider builds the aggregate snapshot served on /status.
type StatusProvider interface {
	Aggregate(ctx context.Context) (playerlist.Status, error)
}

// TLSOptions configures the optional HTTPS listener. Port 0 disables it.
type TLSOptions struct {
	Port     int
	CertFile string
	KeyFile  string
}

// Server serves the viewer page and the JSON/WebSocket endpoints.
type Server struct {
	port    int
	tlsOpts TLSOptions

	service  StatusProvider
	hub      *Hub
	monitor  *health.Monitor
	registry *metric.Registry
	logger   *slog.Logger

	metricsEnabled  bool
	shutdownTimeout time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHub attaches the WebSocket hub served on /ws.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// WithHealthMonitor attaches the monitor served on /healthz.
func WithHealthMonitor(m *health.Monitor) ServerOption {
	return func(s *Server) { s.monitor = m }
}

// WithMetrics exposes the registry on /metrics and counts requests.
func WithMetrics(registry *metric.Registry) ServerOption {
	return func(s *Server) {
		s.registry = registry
		s.metricsEnabled = true
	}
}

// WithTLS enables the secondary HTTPS listener.
func WithTLS(opts TLSOptions) ServerOption {
	return func(s *Server) { s.tlsOpts = opts }
}

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "gateway")
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer creates the HTTP server on the given port.
func NewServer(port int, service StatusProvider, opts ...ServerOption) *Server {
	s := &Server{
		port:            port,
		service:         service,
		logger:          slog.Default().With("component", "gateway"),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route tree wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleViewer)
	mux.HandleFunc("GET /status", s.handleStatus)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	if s.monitor != nil {
		mux.HandleFunc("GET /healthz", s.handleHealth)
	}
	if s.metricsEnabled && s.registry != nil {
		mux.Handle("GET /metrics", s.registry.Handler())
	}

	var core *metric.CoreMetrics
	if s.registry != nil {
		core = s.registry.Core
	}
	return requestLogger(s.logger, core, mux)
}

func (s *Server) handleViewer(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(viewerPage)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	status, err := s.service.Aggregate(r.Context())
	if err != nil {
		s.logger.Warn("status aggregation failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "status source unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	agg := s.monitor.Aggregate("playerlist")
	code := http.StatusOK
	if agg.Status == health.StateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, agg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves HTTP (and HTTPS when configured) until the context is
// cancelled, then shuts down gracefully. An unreadable TLS cert or key
// degrades to HTTP-only with an error log rather than failing startup.
func (s *Server) Run(ctx context.Context) error {
	handler := s.Handler()

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}

	if s.tlsOpts.Port > 0 {
		cert, err := tls.LoadX509KeyPair(s.tlsOpts.CertFile, s.tlsOpts.KeyFile)
		if err != nil {
			s.logger.Error("TLS keypair unreadable, serving HTTP only", "error", err)
		} else {
			servers = append(servers, &http.Server{
				Addr:              fmt.Sprintf(":%d", s.tlsOpts.Port),
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			s.logger.Info("listening", "addr", srv.Addr, "tls", srv.TLSConfig != nil)
			var err error
			if srv.TLSConfig != nil {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("server shutdown", "addr", srv.Addr, "error", err)
			}
		}
		if s.hub != nil {
			s.hub.Close()
		}
		return nil
	})

	return g.Wait()
}
