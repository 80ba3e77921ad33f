// Package main is the entry point for the llmgate server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blueberrycongee/llmgate/internal/api"
	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/config"
	"github.com/blueberrycongee/llmgate/internal/gateway"
	"github.com/blueberrycongee/llmgate/internal/healthcheck"
	"github.com/blueberrycongee/llmgate/internal/observability"
	"github.com/blueberrycongee/llmgate/internal/provider/openai"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger until the configured one is available.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, bootstrap *slog.Logger) error {
	cfgManager, err := config.NewManager(configPath, bootstrap)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer func() { _ = cfgManager.Close() }()

	cfg := cfgManager.Get()

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      observability.ParseLevel(cfg.Logging.Level),
		AddSource:  cfg.Logging.AddSource,
		JSONFormat: !strings.EqualFold(cfg.Logging.Format, "text"),
	}, observability.NewRedactor())
	slog.SetDefault(logger)

	logger.Info("starting llmgate", "version", version, "config", configPath)

	tracer, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	upstream, err := openai.New(cfg.Provider)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	schedCfg := cfg.Scheduler.SchedulerOptions()
	schedCfg.Logger = logger
	schedCfg.Tracer = tracer.Tracer()
	sched, err := scheduler.New(schedCfg)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	// The loop outlives ctx so that shutdown can drain through Close.
	sched.Start(context.Background())

	aiCache := cache.New(cfg.Cache, logger)

	gw, err := gateway.New(gateway.Config{
		Cache:     aiCache,
		Scheduler: sched,
		Provider:  upstream,
		Keys:      cache.NewKeyGenerator(cfg.Cache.Namespace),
		Logger:    logger,
		Tracer:    tracer.Tracer(),
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	otelMetrics, err := observability.InitOTelMetrics(ctx, cfg.OTelMetrics, gw)
	if err != nil {
		return fmt.Errorf("init otel metrics: %w", err)
	}

	reloader := newRuntimeReloader(logger, sched, aiCache, cfg)
	cfgManager.OnChange(reloader.Reload)
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	handlerCfg := &api.HandlerConfig{MaxBodySize: cfg.Server.MaxBodySize}
	if cfg.HealthCheck.Enabled {
		prober := healthcheck.NewProber(cfg.HealthCheck, upstream.Name(), upstream, logger)
		prober.Start(ctx)
		handlerCfg.Readiness = prober
	}

	handler := api.NewHandler(gw, logger, handlerCfg)
	routes, err := buildMuxes(cfg, handler)
	if err != nil {
		return err
	}

	servers := []*http.Server{newServer(cfg.Server, cfg.Server.Port, routes.Data)}
	if routes.Admin != nil {
		servers = append(servers, newServer(cfg.Server, cfg.Server.AdminPort, routes.Admin))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case serveErr = <-errCh:
		logger.Error("server error", "error", serveErr)
	}

	// Graceful shutdown with timeout
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "addr", srv.Addr, "error", err)
		}
	}
	if err := sched.Close(); err != nil {
		logger.Error("scheduler close error", "error", err)
	}
	if err := otelMetrics.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel metrics shutdown error", "error", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return serveErr
}

func newServer(cfg config.ServerConfig, port int, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      buildMiddlewareStack(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
