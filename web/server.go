// Package web serves the node's diagnostic surface: a JSON status
// snapshot and Prometheus metrics. Write-only observability; nothing
// here feeds back into the telemetry cycle.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emonode/emonode/node"
)

type Server struct {
	addr string
	node *node.Node
	srv  *http.Server
}

func NewServer(addr string, n *node.Node, gatherer prometheus.Gatherer) *Server {
	s := &Server{addr: addr, node: n}

	r := chi.NewRouter()
	r.Get("/", s.handleHome)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	slog.Info("Starting diagnostic web server", "addr", s.addr)
	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/status", http.StatusMovedPermanently)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.node.Status()); err != nil {
		slog.Error("Failed to encode status", "error", err)
	}
}
