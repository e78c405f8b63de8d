// Package cli provides the initialization steps shared by cmd/finboard and
// cmd/manualctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finboard/internal/backend"
	"finboard/internal/config"
	applog "finboard/internal/log"
	"finboard/internal/services"
)

// SetupLogger builds the process logger at level and installs it as the
// slog default.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Manual bundles the manual-data service with the backend that feeds it.
type Manual struct {
	Service *services.ManualService
	Backend *backend.BackendResult
}

// Close releases the service publisher and then the backend.
func (m *Manual) Close() error {
	if m == nil {
		return nil
	}
	svcErr := m.Service.Close()
	if err := m.Backend.Close(); err != nil {
		return err
	}
	return svcErr
}

// OpenManual creates the configured manual-data backend, wires the service
// over it and initializes every store. balances may be nil.
func OpenManual(ctx context.Context, cfg *config.Config, logger *applog.Logger, balances services.BalanceSource) (*Manual, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	svc := services.NewManualService(services.ManualDeps{
		RentRoll:  result.RentRoll,
		Fields:    result.Fields,
		Slugs:     result.Slugs,
		Balances:  balances,
		Publisher: result.Publisher,
		Pinger:    result.Pinger,
		Migrator:  result.Migrator,
	})
	if err := svc.Init(ctx); err != nil {
		_ = svc.Close()
		_ = result.Close()
		return nil, fmt.Errorf("init manual data: %w", err)
	}
	return &Manual{Service: svc, Backend: result}, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// cleanup function runs with a context bounded by timeout before the
// returned done channel closes.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
