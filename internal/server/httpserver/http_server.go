// Package httpserver wires the docsync HTTP routes onto a single listener.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docsync/internal/config"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/server/handlers"
	smw "git.home.luguber.info/inful/docsync/internal/server/middleware"
)

// Options carries the collaborators behind the routes. Only Events is required.
type Options struct {
	Events   handlers.EventHandler
	Runs     handlers.RunLookup
	Queue    handlers.QueueStatus
	Metrics  http.Handler
	Recorder metrics.Recorder
}

// Server serves webhooks, health, metrics and run history.
type Server struct {
	cfg          config.ServerConfig
	srv          *http.Server
	handler      http.Handler
	errorAdapter *ferrors.HTTPErrorAdapter
}

// New builds the route table. Nothing listens until Start.
func New(cfg config.ServerConfig, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}

	webhooks := handlers.NewWebhookHandlers(cfg.WebhookSecret, opts.Events, opts.Recorder)
	monitoring := handlers.NewMonitoringHandlers(opts.Runs, opts.Queue)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/docs", webhooks.HandleDocsWebhook)
	mux.HandleFunc("/webhooks/wiki", webhooks.HandleWikiWebhook)
	mux.HandleFunc("/webhook", webhooks.HandleGenericWebhook)
	mux.HandleFunc("/healthz", monitoring.HandleHealthCheck)
	mux.HandleFunc("/runs", monitoring.HandleRuns)
	mux.HandleFunc("/runs/{id}", monitoring.HandleRun)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	s.handler = smw.Chain(slog.Default(), s.errorAdapter)(mux)
	return s
}

// Handler exposes the wrapped route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the configured address and serves in the background. A bind
// failure is returned directly.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}
	return s.StartWithListener(ln)
}

// StartWithListener serves on an already bound listener.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", logfields.Error(err))
		}
	}()
	slog.Info("HTTP server started", slog.String("address", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
