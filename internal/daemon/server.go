// Package daemon hosts the long-running server: backend bootstrap, the solve
// pipeline, and the HTTP/Connect transports in front of it.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/fetch"
	"github.com/trisolve/trisolve/internal/llm/configbuilder"
	"github.com/trisolve/trisolve/internal/llm/providers/ollama"
	"github.com/trisolve/trisolve/internal/observability"
	"github.com/trisolve/trisolve/internal/pipeline"
	solverpc "github.com/trisolve/trisolve/internal/rpc/solve"
	toolrpc "github.com/trisolve/trisolve/internal/rpc/tools"
	"github.com/trisolve/trisolve/internal/search"
	"github.com/trisolve/trisolve/internal/tools"
)

// Server hosts the solve endpoints plus health and metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  solverpc.Runner
	metrics *observability.Metrics
	tools   *tools.Registry
}

// NewServer bootstraps the backend and constructs a daemon instance. For an
// Ollama backend this probes liveness and provisions every role model before
// any role is bound; a dead backend or failed pull aborts startup.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend.Type), "ollama") {
		mgr := ollama.NewManager(cfg.Backend.BaseURL, cfg.Backend.ProbeTimeout)
		if !mgr.Status(ctx) {
			return nil, fmt.Errorf("ollama backend unreachable at %s", cfg.Backend.BaseURL)
		}
		prov := ollama.NewProvisioner(mgr, time.Duration(cfg.Backend.PullTimeoutSeconds)*time.Second, logger)
		if err := configbuilder.EnsureModels(ctx, prov, cfg); err != nil {
			return nil, fmt.Errorf("ensure models: %w", err)
		}
	}

	roles, err := configbuilder.BuildRoles(cfg)
	if err != nil {
		return nil, fmt.Errorf("build roles: %w", err)
	}

	metrics := observability.NewMetrics()
	toolRegistry := tools.NewRegistry(buildSearcher(cfg.Search), fetch.NewHTTP(cfg.Pipeline.ScrapeMaxBytes))
	pipe := pipeline.New(roles, toolRegistry, cfg.Pipeline, logger, metrics)
	runner := solverpc.NewPipelineRunner(pipe, logger)

	return &Server{cfg: cfg, logger: logger, runner: runner, metrics: metrics, tools: toolRegistry}, nil
}

func buildSearcher(cfg config.SearchConfig) search.Searcher {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "brave":
		return search.NewBrave(cfg.APIKey, cfg.MaxResults)
	default:
		return search.NewDuckDuckGo(cfg.MaxResults)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/tools/schemas", toolrpc.SchemaHandler{Registry: s.tools})

	transport := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	switch transport {
	case "ndjson":
		mux.Handle("/solve", solverpc.NewHandler(s.runner, s.metrics))
	default:
		path, handler := solverpc.NewConnectHandler(s.runner, s.metrics)
		mux.Handle(path, handler)
		// NDJSON stays mounted for plain HTTP clients
		mux.Handle("/solve", solverpc.NewHandler(s.runner, s.metrics))
	}

	handler := http.Handler(mux)
	if transport != "ndjson" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting trisolve daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down trisolve daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
