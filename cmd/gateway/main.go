// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package main is the entry point for the Oddsgate gateway process.
//
// Oddsgate is the edge tier of a betting platform: it terminates customer
// and admin WebSocket connections, fans backend change notifications out to
// the sessions that subscribed to them, and proxies request/response traffic
// to the backend services over NATS.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment (Koanf v2)
//  2. NATS broker: request/response and fire-and-forget backend messaging
//  3. Bus transport: redis pub/sub (or in-memory for single-node development)
//  4. Subscription watcher: channel-key registries and message dispatch
//  5. Connection gateway: WebSocket upgrade, identity, online status
//  6. Supervisor tree: dispatch and API layers with automatic restarts
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (GATEWAY_ prefix)
//   - Config file (gateway.yaml)
//   - Built-in defaults
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/oddsgate/internal/broker"
	"github.com/tomtom215/oddsgate/internal/bus"
	"github.com/tomtom215/oddsgate/internal/config"
	"github.com/tomtom215/oddsgate/internal/gateway"
	"github.com/tomtom215/oddsgate/internal/identity"
	"github.com/tomtom215/oddsgate/internal/logging"
	"github.com/tomtom215/oddsgate/internal/supervisor"
	"github.com/tomtom215/oddsgate/internal/watcher"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    os.Stderr,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("production", cfg.Gateway.Production).
		Msg("Starting Oddsgate gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := broker.Connect(broker.Config{
		URL:              cfg.Broker.URL,
		Embedded:         cfg.Broker.Embedded,
		RequestTimeout:   cfg.Broker.RequestTimeout,
		BreakerThreshold: cfg.Broker.BreakerThreshold,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS broker")
	}
	defer b.Close()

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create bus transport")
	}
	defer transport.Close()

	w := watcher.New(transport)
	resolver := identity.NewResolver(b)

	connector := gateway.New(gateway.Config{
		Production:     cfg.Gateway.Production,
		DefaultWebsite: cfg.Gateway.DefaultWebsite,
		DefaultLang:    cfg.Gateway.DefaultLang,
		RequestTimeout: cfg.Broker.RequestTimeout,
	}, w, b, resolver)

	tree, err := supervisor.NewSupervisorTree(logging.Slog(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDispatchService(w)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      connector.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	logging.Info().Msg("Gateway stopped")
}

// newTransport selects the pub/sub transport from configuration. The
// in-memory transport exists for single-node development; production
// deployments fan out through redis so every gateway instance sees the
// backend's published notifications.
func newTransport(ctx context.Context, cfg *config.Config) (bus.Transport, error) {
	if cfg.Bus.InMemory {
		return bus.NewMemory(), nil
	}
	opts, err := redis.ParseURL(cfg.Bus.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return bus.NewRedis(ctx, redis.NewClient(opts))
}
