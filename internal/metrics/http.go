package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the metrics registry and a liveness endpoint while the
// sentinel phase holds the container in the foreground.
type Server struct {
	listen string
	path   string
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the monitoring endpoint for the given registry.
// The /healthz endpoint reports 200 as long as the process is serving.
func NewServer(listen, path string, reg *prom.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		listen: listen,
		path:   path,
		logger: logger,
		srv: &http.Server{
			Addr:         listen,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves in the background until Stop. Startup failures (typically a
// taken port) are logged, not fatal: monitoring never blocks the boot.
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		s.logger.Info("monitoring endpoint listening",
			slog.String("listen", s.listen), slog.String("path", s.path))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("monitoring endpoint failed", slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts the endpoint down gracefully.
func (s *Server) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("monitoring endpoint shutdown failed", slog.String("error", err.Error()))
	}
}
