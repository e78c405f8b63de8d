package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/dataset"
	apphttp "finboard/internal/http"
	applog "finboard/internal/log"
	"finboard/internal/upstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	// The summary totals read cached balances even when the dataset routes
	// are off.
	demo := dataset.Load(cfg.StaticDBPath)

	ctx := context.Background()
	manual, err := cli.OpenManual(ctx, cfg, logger, demo)
	if err != nil {
		logger.Error("Failed to initialize manual data", "error", err, "backend", cfg.ManualDataBackend)
		os.Exit(1)
	}

	proxy, err := upstream.NewProxy(cfg.BackendURL, cfg.ProxyTimeout)
	if err != nil {
		logger.Error("Invalid backend URL", "error", err, "backend_url", cfg.BackendURL)
		os.Exit(1)
	}
	runtime := upstream.NewConfigClient(cfg.BackendURL,
		upstream.Guards{ManualData: cfg.FeatureManualData, StaticDB: cfg.FeatureStaticDB},
		upstream.ConfigClientOptions{Timeout: cfg.ConfigFetchTimeout, CacheTTL: cfg.ConfigCacheTTL})

	caches := cache.NewManager()
	caches.Register("runtime_config", runtime.Cache())
	caches.StartCleanup(time.Minute)

	srv, err := apphttp.NewServer(net.JoinHostPort("", cfg.Port), apphttp.Deps{
		Config:  cfg,
		Manual:  manual.Service,
		Dataset: demo,
		Runtime: runtime,
		Proxy:   proxy,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = cfg.ProxyTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := manual.Close(); err != nil {
			logger.Error("Failed to close manual data backend", "error", err)
		}
	})

	logReadiness(ctx, logger, manual, cfg.FeatureManualData)
	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"backend_url", proxy.Target(),
		"manual_data_backend", cfg.ManualDataBackend,
		"static_db", cfg.FeatureStaticDB,
		"readonly", cfg.ManualDataReadOnly,
		"dry_run", cfg.ManualDataDryRun)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-shutdownCtx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}

// logReadiness reports store connectivity and the current manual totals.
func logReadiness(ctx context.Context, logger *applog.Logger, manual *cli.Manual, enabled bool) {
	if !enabled {
		logger.Info("Manual data disabled")
		return
	}
	store := manual.Service.Ping(ctx)
	if store.Connected != nil && !*store.Connected {
		logger.Warn("Manual data store not reachable", "error", store.Error)
	}
	health := manual.Service.SummaryHealth(ctx)
	if !health.OK {
		logger.Warn("Manual summary unavailable at startup", "error", health.Error)
		return
	}
	logger.Info("Manual data ready",
		"total_assets", health.Totals.TotalAssets,
		"total_liabilities", health.Totals.TotalLiabilities,
		"total_equity", health.Totals.TotalEquity)
}
