// Package webapi exposes the session hub over HTTP: a REST chat endpoint, a
// websocket push channel, history and model reads, health/stats, and
// prometheus metrics.
package webapi

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantumtravel/chathub/pkg/chathub"
	"github.com/quantumtravel/chathub/pkg/config"
)

const (
	serviceName    = "chathub"
	serviceVersion = "1.0.0"
)

//go:embed static/*
var staticFS embed.FS

// Server owns the HTTP mux, the websocket upgrader and the hub wiring.
type Server struct {
	cfg      config.Config
	hub      *chathub.Hub
	mux      *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader
	gatherer prometheus.Gatherer
}

// NewServer constructs a Server and registers all routes. gatherer may be nil
// to disable the /metrics endpoint.
func NewServer(cfg config.Config, hub *chathub.Hub, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      hub,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		gatherer: gatherer,
	}
	s.registerHandlers()
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler exposes the mux for httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the HTTP server and blocks until ctx is done or an interrupt
// arrives, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	eg := errgroup.Group{}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-srvCtx.Done():
		}
		srvCancel()
		s.hub.AnnounceShutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		s.hub.Registry().CloseAll()
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().Str("addr", s.cfg.Addr).Msg("starting chathub server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	if staticSub, err := fs.Sub(staticFS, "static"); err == nil {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	}
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/history/{id}", s.handleHistory)
	s.mux.HandleFunc("GET /api/models", s.handleModels)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}
