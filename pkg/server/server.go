// Package server implements the dev UI: a local HTTP server for chatting
// with configured agents, plus health and metrics endpoints.
package server

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/relay-agents/relay/pkg/agent"
	"github.com/relay-agents/relay/pkg/config"
)

//go:embed static
var staticFS embed.FS

// Server hosts the dev UI over a set of constructed agents.
type Server struct {
	cfg    config.ServerConfig
	agents map[string]*agent.Agent
	logger *slog.Logger

	metricsPath string

	mu      sync.Mutex
	threads map[string]*agent.Thread

	// threadOpts are applied to every thread the server creates, e.g.
	// a token budget for window trimming.
	threadOpts []agent.ThreadOption

	httpServer *http.Server
}

// New creates a dev UI server. The agents map is keyed by agent name.
func New(cfg config.ServerConfig, metricsPath string, agents map[string]*agent.Agent, threadOpts ...agent.ThreadOption) *Server {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		cfg:         cfg,
		agents:      agents,
		logger:      slog.Default().With("component", "server"),
		metricsPath: metricsPath,
		threads:     make(map[string]*agent.Thread),
		threadOpts:  threadOpts,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("dev UI listening", "addr", "http://"+s.Addr())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("dev UI server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get(s.metricsPath, promhttp.Handler().ServeHTTP)

	r.Get("/agents", s.handleListAgents)
	r.Post("/agents/{agent}/messages", s.handleSendMessage)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// thread returns the thread for an ID, creating one when the ID is
// empty or unknown.
func (s *Server) thread(id string) *agent.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if t, ok := s.threads[id]; ok {
			return t
		}
	}

	opts := append([]agent.ThreadOption{}, s.threadOpts...)
	if id != "" {
		opts = append(opts, agent.WithThreadID(id))
	}
	t := agent.NewThread(opts...)
	s.threads[t.ID()] = t
	return t
}
