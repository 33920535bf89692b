package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /health over plain HTTP: a bare http.Server
// wrapping promhttp's handler, started/stopped independently of the gRPC
// peer transport.
type Server struct {
	log    *slog.Logger
	server *http.Server
}

// NewServer builds a metrics server listening on addr. It does not start
// listening until Start is called.
func NewServer(log *slog.Logger, addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		log: log,
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.log.Info("metrics server starting", "addr", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts the metrics server down within the given deadline.
func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("metrics server shutdown error", "error", err)
	}
	s.log.Info("metrics server stopped")
}
