// Command fanout-server runs the subscription fan-out hub: it terminates
// WebSocket connections, compiles each client's filter expression, and
// dispatches the canonical event stream to every matching session.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"fanout-server/internal/auth"
	"fanout-server/internal/config"
	"fanout-server/internal/ingest"
	"fanout-server/internal/logging"
	"fanout-server/internal/metrics"
	"fanout-server/internal/session"
	"fanout-server/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	lim, err := cfg.Limits.ToLimits()
	if err != nil {
		logger.Fatal("invalid limits configuration", zap.Error(err))
	}

	var gate *auth.Gate
	if cfg.Auth.Enabled {
		if cfg.Auth.Secret == "" {
			logger.Fatal("auth enabled but no secret configured")
		}
		gate = auth.NewGate(cfg.Auth.Secret, 0)
	}

	metricsRegistry := metrics.NewRegistry()

	hubCfg := session.Config{
		ShardCount:   cfg.Hub.ShardCount,
		QueueSize:    cfg.Hub.QueueSize,
		SessionQueue: cfg.Hub.SessionQueueSize,
	}
	hub := session.NewHub(hubCfg, metricsRegistry)

	// A production deployment feeds the hub from a geyser plugin or replay
	// tool; that ingestion adapter is an external collaborator (spec.md
	// §1). This entrypoint wires an in-process ChannelAdapter so the hub
	// has a live Source to drain from startup.
	adapter := ingest.NewChannelAdapter(cfg.Hub.QueueSize)
	hub.Start(adapter.Source())

	transportServer := transport.NewServer(cfg, logger, hub, metricsRegistry, lim, gate, base58.Decode, base64.StdEncoding.DecodeString)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := transportServer.Start(ctx); err != nil {
		logger.Fatal("transport start failed", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- transport.RunHTTPServer(ctx, cfg, hub, hub.Tracker(), metricsRegistry, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
		stop()
	}

	transportServer.Stop()
	hub.Shutdown(context.Background())
	adapter.Close()
	logger.Info("transport stopped")
}
