// Package cli provides the keuangan command tree and the initialization
// shared by its commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"keuangan/internal/backend"
	"keuangan/internal/config"
	"keuangan/internal/log"
	"keuangan/internal/metrics"
	"keuangan/internal/services"
	"keuangan/internal/storage"
)

// SetupLogger builds the process logger from the configured level and format
// and makes it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from path (or KEUANGAN_CONFIG when
// path is empty) and validates it.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenLedger creates the configured backend and opens the ledger on it. The
// returned result must be closed by the caller.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, m *metrics.Metrics) (*services.Ledger, *backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create backend: %w", err)
	}

	opts := []services.Option{services.WithLogger(logger)}
	if m != nil {
		opts = append(opts, services.WithMetrics(m))
	}
	if res.Exporter != nil {
		opts = append(opts, services.WithExporter(res.Exporter))
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	l := services.NewLedger(ctx, storage.NewGateway(res.KV, cfg.StorageKey), opts...)
	logger.Debug("Ledger opened",
		log.FieldStorageKey, cfg.StorageKey, "backend", cfg.DataBackend, log.FieldCount, l.Snapshot().Len())
	return l, res, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged.
func ShutdownContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
