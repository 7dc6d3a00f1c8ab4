package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/internal/telemetry"
	"github.com/portway-io/portway/pkg/config"
	"github.com/portway-io/portway/pkg/gateway"
	"github.com/portway-io/portway/pkg/gateway/handlers"
	"github.com/portway-io/portway/pkg/metrics"
	"github.com/portway-io/portway/pkg/token"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Portway gateway",
	Long: `Start the Portway gateway with the specified configuration.

By default, the gateway runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/portway/config.yaml.

Examples:
  # Start in background (default)
  portway start

  # Start in foreground
  portway start --foreground

  # Start with custom config file
  portway start --config /etc/portway/config.yaml

  # Start with environment variable overrides
  PORTWAY_LOGGING_LEVEL=DEBUG portway start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/portway/portway.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/portway/portway.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "portway",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "portway",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("Portway - Configuration-driven API gateway")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics (if enabled)
	var gatewayMetrics *metrics.GatewayMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		gatewayMetrics = metrics.NewGatewayMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Load the endpoint descriptor tree and start the hot-reload watcher
	registry, err := config.CreateEndpointRegistry(cfg)
	if err != nil {
		return err
	}
	defer registry.Stop()

	if err := registry.Start(); err != nil {
		return fmt.Errorf("failed to start descriptor watcher: %w", err)
	}

	snap := registry.Snapshot()
	logger.Info("Endpoints loaded", "directory", cfg.Endpoints.Directory, "count", snap.Len())
	for _, loadErr := range snap.Errors() {
		logger.Warn("Descriptor failed to load", "path", loadErr.Path, "error", loadErr.Err)
	}
	gatewayMetrics.RecordRegistryReload(snap.Len(), len(snap.Errors()))

	// Open one pool per configured environment
	environments, err := config.CreateEnvironmentRegistry(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = environments.Close() }()
	logger.Info("Environments configured", "names", environments.Names())

	// Open the token database
	tokenStore, err := config.CreateTokenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = tokenStore.Close() }()
	tokens := token.NewService(tokenStore)

	// Wire one handler per endpoint kind
	bufferCap := int64(cfg.Gateway.MaxProxyBufferBytes)
	proxy := handlers.NewProxy(nil, bufferCap)
	h := gateway.Handlers{
		SQL:       handlers.NewSQL(),
		Proxy:     proxy,
		Composite: handlers.NewComposite(proxy),
		File:      handlers.NewFile(cfg.Files.StorageRoot),
		Static:    handlers.NewStatic(),
		Webhook:   handlers.NewWebhook(nil, cfg.Webhooks, bufferCap),
		Health:    handlers.NewHealth(registry, tokens, Version),
	}
	if len(cfg.Webhooks) > 0 {
		logger.Info("Webhook sinks configured", "count", len(cfg.Webhooks))
	}

	dispatcher := gateway.NewDispatcher(cfg.Gateway, registry, environments, tokens, h, gatewayMetrics)
	server := gateway.NewServer(cfg.Gateway, dispatcher)
	server.SetShutdownTimeout(cfg.ShutdownTimeout)

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Run the gateway and the metrics server; one failing stops the other
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Start(groupCtx)
	})
	if metricsServer != nil {
		group.Go(func() error {
			return metricsServer.Start(groupCtx)
		})
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- group.Wait()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for in-flight requests to drain, bounded by the configured
		// shutdown timeout plus slack for listener teardown.
		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Server shutdown error", "error", err)
				return err
			}
			logger.Info("Server stopped gracefully")
		case <-time.After(cfg.ShutdownTimeout + 5*time.Second):
			logger.Error("Graceful shutdown timed out")
			return fmt.Errorf("graceful shutdown timed out after %s", cfg.ShutdownTimeout)
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
