package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessiongate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/browserbase"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/redis"
	"github.com/Sentinel-Gate/sessiongate/internal/config"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

// redisConnectAttempts bounds the startup ping of the redis artifact backend.
const redisConnectAttempts = 5

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start the sessiongate HTTP server.

Clients open GET /sse with their Browserbase and model-provider credentials
and post JSON-RPC messages to the endpoint announced on the stream.

Examples:
  # Start with config file settings
  sessiongate start

  # Start on another port
  PORT=8080 sessiongate start

  # Start with a specific config file
  sessiongate --config /path/to/sessiongate.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg)
	logger.Debug("log level configured", "level", cfg.Server.LogLevel)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled")
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("sessiongate stopped")
	return nil
}

// run wires every component together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	transport, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("starting sessiongate",
		"version", Version,
		"addr", cfg.Server.HTTPAddr,
		"artifacts", cfg.Artifacts.Backend,
	)
	return transport.Start(ctx)
}

// build assembles the HTTP transport and everything behind it.
// The returned cleanup closes the artifact store.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.HTTPTransport, func(), error) {
	registry := session.NewRegistry()

	promRegistry := http.NewRegistry()
	metrics := http.NewMetrics(promRegistry)

	artifacts, err := newArtifactStore(ctx, cfg.Artifacts, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := artifacts.Close(); err != nil {
			logger.Warn("artifact store close failed", "error", err)
		}
	}

	client := browserbase.NewClient(
		browserbase.WithBaseURL(cfg.Browserbase.BaseURL),
		browserbase.WithTimeout(config.Duration(cfg.Browserbase.RequestTimeout)),
	)
	pool := browserbase.NewPool(client, browserbase.WithLogger(logger))

	lifecycle := service.NewSessionLifecycle(registry, logger,
		service.WithBackend(pool),
		service.WithArtifacts(artifacts),
		service.WithObserver(metrics),
		service.WithReleaseTimeout(config.Duration(cfg.Browserbase.ReleaseTimeout)),
	)

	tools := service.NewToolServerFactory(pool, client, artifacts, logger, Version)

	opts := []http.Option{
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		http.WithLogger(logger),
		http.WithMetrics(promRegistry, metrics),
		http.WithHealthChecker(http.NewHealthChecker(registry, artifacts, pool, Version)),
		http.WithShutdownTimeout(config.Duration(cfg.Server.ShutdownTimeout)),
	}
	if cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != "" {
		opts = append(opts, http.WithTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile))
	}

	return http.NewHTTPTransport(lifecycle, tools, opts...), cleanup, nil
}

// newArtifactStore opens the configured artifact backend.
func newArtifactStore(ctx context.Context, cfg config.ArtifactsConfig, logger *slog.Logger) (outbound.ArtifactStore, error) {
	ttl := config.Duration(cfg.TTL)

	switch cfg.Backend {
	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})

		ping := func() error {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(pctx).Err()
		}
		notify := func(err error, wait time.Duration) {
			logger.Warn("redis not reachable, retrying", "addr", cfg.Redis.Addr, "retry_in", wait, "error", err)
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), redisConnectAttempts), ctx)
		if err := backoff.RetryNotify(ping, b, notify); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		store, err := redis.NewArtifactStore(redis.Config{
			Client:    client,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       ttl,
		})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info("artifact store: redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return store, nil

	default:
		store := memory.NewArtifactStore(ttl, memory.WithLogger(logger))
		if ttl > 0 {
			store.StartCleanup(ctx)
		}
		logger.Info("artifact store: memory", "ttl", ttl)
		return store, nil
	}
}

// newLogger builds the stderr text logger. DevMode always forces debug.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel maps a config log level to slog.Level (default info).
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns where the running server records its PID.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".sessiongate", "server.pid")
	}
	return filepath.Join(os.TempDir(), "sessiongate-server.pid")
}

// writePIDFile writes the current process PID to path, creating parent
// directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// readPIDFile returns the PID stored at path, or 0.
func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
