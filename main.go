package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mrops-br/products-service/internal/app/service"
	"github.com/mrops-br/products-service/internal/infrastructure/cli"
	"github.com/mrops-br/products-service/internal/infrastructure/config"
	"github.com/mrops-br/products-service/internal/infrastructure/repository"
	"github.com/mrops-br/products-service/internal/infrastructure/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, rest, err := cli.ParseGlobalFlags(args, os.Stderr)
	if err != nil {
		return cli.ParseExitCode(err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return cli.ExitFailure
	}

	// Cancel in-flight work on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	var telem *telemetry.Telemetry
	if cfg.OTLP.Enabled {
		telem, err = telemetry.NewTelemetry(ctx, cfg, os.Stderr)
	} else {
		telem, err = telemetry.NewNoOpTelemetry(cfg, os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		return cli.ExitFailure
	}

	ctx = telemetry.WithInvocationID(ctx, uuid.NewString())

	tracer := telem.TracerProvider.Tracer("products-service")
	meter := telem.MeterProvider.Meter("products-service")
	logger := telem.Logger

	// Metrics are pushed before the providers shut down
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := telem.PushMetrics(shutdownCtx, cfg.Metrics); err != nil {
			logger.WarnContext(ctx, "Failed to push metrics", slog.String("error", err.Error()))
		}
		if err := telem.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down telemetry: %v\n", err)
		}
	}()

	logger.DebugContext(ctx, "Starting products service",
		slog.String("storage_driver", cfg.Storage.Driver),
	)

	// Initialize storage (dependency injection)
	storage, err := repository.Open(ctx, cfg.Storage, tracer, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to open storage", slog.String("error", err.Error()))
		return cli.ExitFailure
	}
	defer storage.Close()

	productService := service.NewProductService(storage.Products, storage.Tx, tracer, meter, logger)

	app := cli.NewApp(productService, tracer, meter, logger, os.Stdout, os.Stderr)
	return app.Run(ctx, rest)
}
