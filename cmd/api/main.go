package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/booking-cascade/internal/api/router"
	"github.com/wolfman30/booking-cascade/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-cascade/internal/config"
	"github.com/wolfman30/booking-cascade/internal/demo"
	"github.com/wolfman30/booking-cascade/internal/forms"
	httpmiddleware "github.com/wolfman30/booking-cascade/internal/http/middleware"
	"github.com/wolfman30/booking-cascade/internal/observability/metrics"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

const reapInterval = time.Minute

func main() {
	// .env is optional; real deployments set the environment directly.
	envErr := godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("could not read .env", "error", envErr)
	}
	logger.Info("starting booking-cascade API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"demo_catalog", cfg.DemoCatalog,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootstrap.ApplyDemoCatalog(cfg)
	clk, err := bootstrap.BuildClock(cfg)
	if err != nil {
		logger.Error("failed to configure clock", "error", err)
		os.Exit(1)
	}

	metricsHandler, cascadeMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	gateway, err := bootstrap.BuildGateway(cfg, redisClient, cascadeMetrics, logger)
	if err != nil {
		logger.Error("failed to configure availability gateway", "error", err)
		os.Exit(1)
	}
	submitter, err := bootstrap.BuildSubmitter(cfg, logger)
	if err != nil {
		logger.Error("failed to configure booking submitter", "error", err)
		os.Exit(1)
	}

	manager := forms.NewManager(forms.ManagerConfig{
		Gateway:      gateway,
		Submitter:    submitter,
		Clock:        clk,
		Metrics:      cascadeMetrics,
		FetchTimeout: cfg.FetchTimeout,
		IdleTimeout:  cfg.SessionIdleTimeout,
	}, logger)
	go manager.Run(ctx, reapInterval)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	handler := buildHandler(cfg, manager, metricsHandler, limiter, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	manager.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds a dedicated registry with runtime collectors and the
// booking metrics.
func setupMetrics() (http.Handler, *metrics.CascadeMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCascadeMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// buildHandler assembles the public router, plus the seeded clinic backend
// under /demo when DEMO_CATALOG is on.
func buildHandler(cfg *appconfig.Config, manager *forms.Manager, metricsHandler http.Handler, limiter *httpmiddleware.RateLimiter, logger *logging.Logger) http.Handler {
	api := router.New(&router.Config{
		Logger: logger,
		FormsHandler: forms.NewHandler(manager, forms.HandlerConfig{
			RequirePatient: cfg.RequirePatientLogin,
			WaitTimeout:    cfg.FetchTimeout,
		}, logger),
		MetricsHandler:     metricsHandler,
		MetricsToken:       cfg.MetricsToken,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		PatientAuthSecret:  cfg.PatientJWTSecret,
	})
	if !cfg.DemoCatalog {
		return api
	}

	root := chi.NewRouter()
	root.Mount("/demo", demo.NewCatalog(logger).Routes())
	root.Mount("/", api)
	return root
}
