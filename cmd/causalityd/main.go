// Causalityd is a causality chain tracking daemon.
//
// It maintains an in-memory forest of causal event chains and exposes a
// read-only HTTP inspection API for timelines, performance reports, and
// chain exports.
//
// Configuration is loaded from an optional YAML file overridden by
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start daemon with defaults
//	causalityd
//
//	# Configure via file and environment
//	causalityd -config ~/.config/causalityd/config.yaml
//	SERVER_HTTP_PORT=9280 causalityd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/causalityd/internal/config"
	httpserver "github.com/fyrsmithlabs/causalityd/internal/http"
	"github.com/fyrsmithlabs/causalityd/internal/logging"
	"github.com/fyrsmithlabs/causalityd/internal/telemetry"
	"github.com/fyrsmithlabs/causalityd/internal/tracker"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  causalityd           Start the causalityd daemon\n")
			fmt.Fprintf(os.Stderr, "  causalityd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("causalityd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the causalityd daemon and blocks until context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize telemetry (degraded, not fatal, when the collector is down)
//  3. Initialize logger, bridged to the OTEL log provider when enabled
//  4. Create the tracker and install it as the process default
//  5. Start the HTTP inspection server
//  6. On cancellation: stop HTTP, destroy the tracker, flush telemetry
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting causalityd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_chains", cfg.Tracker.MaxChainsInMemory),
		zap.Duration("max_chain_duration", cfg.Tracker.MaxChainDuration.Duration()),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	trk, err := tracker.New(trackerConfig(cfg), logger.Underlying().Named("tracker"))
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}
	if prev := tracker.SetDefault(trk); prev != nil {
		prev.Destroy()
	}

	srv, err := httpserver.NewServer(trk, logger.Underlying().Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown error", zap.Error(err))
	}

	tracker.DestroyDefault()

	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "telemetry shutdown error", zap.Error(err))
	}

	return nil
}

// initLogger builds the structured logger from daemon config.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logCfg.Fields["service.version"] = version

	if tel.IsEnabled() {
		logCfg.Output.OTEL = true
		return logging.NewLogger(logCfg, tel.LoggerProvider())
	}
	return logging.NewLogger(logCfg, nil)
}

// telemetryConfig maps daemon config onto the telemetry component config.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Observability.Enabled
	tc.Endpoint = cfg.Observability.Endpoint
	tc.Protocol = cfg.Observability.Protocol
	tc.Insecure = cfg.Observability.Insecure
	tc.ServiceName = cfg.Observability.ServiceName
	tc.ServiceVersion = cfg.Observability.ServiceVersion
	tc.Metrics.ExportInterval = cfg.Observability.ExportInterval
	return tc
}

// trackerConfig maps daemon config onto the tracker component config.
func trackerConfig(cfg *config.Config) *tracker.Config {
	return &tracker.Config{
		MaxChainsInMemory: cfg.Tracker.MaxChainsInMemory,
		MaxChainDuration:  cfg.Tracker.MaxChainDuration,
		MaxChainLength:    cfg.Tracker.MaxChainLength,
		CleanupInterval:   cfg.Tracker.CleanupInterval,
	}
}
