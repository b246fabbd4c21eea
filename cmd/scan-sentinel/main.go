package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/scality/scan-sentinel/pkg/sentinel"
	"github.com/scality/scan-sentinel/pkg/util"
)

func main() {
	os.Exit(run())
}

// openInput returns the configured error log, or stdin
func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path) //nolint:gosec // Reading the operator-provided log is the point
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// waitForShutdown waits for shutdown signal or run completion, returns exit code
func waitForShutdown(cancel context.CancelFunc, logger *slog.Logger,
	errChan <-chan error, signalsChan <-chan os.Signal, shutdownTimeout time.Duration) int {
	select {
	case sig := <-signalsChan:
		logger.Info("signal received", "signal", sig)
		cancel()

		// Wait for the run to stop (with timeout)
		shutdownTimer := time.NewTimer(shutdownTimeout)
		defer shutdownTimer.Stop()

		select {
		case <-shutdownTimer.C:
			logger.Warn("shutdown timeout exceeded, forcing exit")
			return 1
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("run stopped with error", "error", err)
				return 1
			}
		}

	case err := <-errChan:
		if err != nil {
			logger.Error("run failed", "error", err)
			return 1
		}
	}

	return 0
}

func run() int {
	// Add command-line flags
	sentinel.ConfigSpec.AddFlag(pflag.CommandLine, "log-level", "log-level")
	sentinel.ConfigSpec.AddFlag(pflag.CommandLine, "input", "input.path")
	sentinel.ConfigSpec.AddFlag(pflag.CommandLine, "output-directory", "output.directory")

	configFileFlag := pflag.String("config-file", "", "Path to configuration file")
	pflag.Parse()

	// Load configuration
	configFile := *configFileFlag
	if configFile == "" {
		configFile = os.Getenv("SCAN_SENTINEL_CONFIG_FILE")
	}

	err := sentinel.ConfigSpec.LoadConfiguration(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		pflag.Usage()
		return 2
	}

	// Validate configuration
	err = sentinel.ValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		return 2
	}

	// Set up logger
	logLevel := util.ParseLogLevel(sentinel.ConfigSpec.GetString("log-level"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	shutdownTimeout := time.Duration(sentinel.ConfigSpec.GetInt("shutdown-timeout-seconds")) * time.Second
	runTimeout := time.Duration(sentinel.ConfigSpec.GetInt("timeout.run-seconds")) * time.Second

	input, err := openInput(sentinel.ConfigSpec.GetString("input.path"))
	if err != nil {
		logger.Error("failed to open input", "error", err)
		return 1
	}
	defer func() { _ = input.Close() }()

	// Create pipeline
	ctx := context.Background()
	pipeline, err := sentinel.NewPipeline(ctx, sentinel.PipelineConfigFromSpec(logger, sentinel.NewMetrics()))
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		return 1
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			logger.Error("failed to close pipeline", "error", closeErr)
		}
	}()

	// Start metrics server
	metricsServer, err := util.StartMetricsServerIfEnabled(
		sentinel.ConfigSpec, "metrics-server", nil, logger)
	if err != nil {
		logger.Error("failed to start metrics server", "error", err)
		return 1
	}
	if metricsServer != nil {
		defer func() {
			if closeErr := metricsServer.Close(); closeErr != nil {
				logger.Error("failed to close metrics server", "error", closeErr)
			}
		}()
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	signalsChan := make(chan os.Signal, 1)
	signal.Notify(signalsChan, unix.SIGINT, unix.SIGTERM)

	// Start the run in a goroutine
	errChan := make(chan error, 1)
	go func() {
		_, runErr := pipeline.Run(ctx, input)
		errChan <- runErr
	}()

	// Wait for signal or completion
	exitCode := waitForShutdown(cancel, logger, errChan, signalsChan, shutdownTimeout)

	if exitCode == 0 {
		logger.Info("scan-sentinel stopped")
	}
	return exitCode
}
