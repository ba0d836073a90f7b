// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package config loads gateway configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables.
// Precedence: ENV > file > defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Gateway GatewayConfig `koanf:"gateway"`
	Bus     BusConfig     `koanf:"bus"`
	Broker  BrokerConfig  `koanf:"broker"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GatewayConfig holds connection-resolution settings.
type GatewayConfig struct {
	// Production enables website resolution via the core service;
	// otherwise DefaultWebsite applies to every connection.
	Production     bool  `koanf:"production"`
	DefaultWebsite int64 `koanf:"default_website"`
	DefaultLang    int64 `koanf:"default_lang"`
}

// BusConfig holds the pub/sub transport settings.
type BusConfig struct {
	// InMemory substitutes the in-process transport for redis
	// (single-node development).
	InMemory bool   `koanf:"in_memory"`
	RedisURL string `koanf:"redis_url"`
}

// BrokerConfig holds the NATS messaging settings.
type BrokerConfig struct {
	URL string `koanf:"url"`
	// Embedded starts an in-process NATS server (development mode).
	Embedded         bool          `koanf:"embedded"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Gateway.DefaultWebsite <= 0 {
		return fmt.Errorf("gateway.default_website must be positive, got %d", c.Gateway.DefaultWebsite)
	}
	if c.Gateway.DefaultLang <= 0 {
		return fmt.Errorf("gateway.default_lang must be positive, got %d", c.Gateway.DefaultLang)
	}
	if !c.Bus.InMemory && c.Bus.RedisURL == "" {
		return fmt.Errorf("bus.redis_url is required unless bus.in_memory is set")
	}
	if !c.Broker.Embedded && c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required unless broker.embedded is set")
	}
	if c.Broker.RequestTimeout <= 0 {
		return fmt.Errorf("broker.request_timeout must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
