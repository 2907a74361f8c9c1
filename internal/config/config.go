// Package config provides configuration loading for causalityd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults for everything left unset.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete causalityd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Tracker       TrackerConfig       `koanf:"tracker"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP inspection server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// TrackerConfig holds causality tracker limits.
type TrackerConfig struct {
	MaxChainsInMemory int      `koanf:"max_chains_in_memory"`
	MaxChainDuration  Duration `koanf:"max_chain_duration"`
	MaxChainLength    int      `koanf:"max_chain_length"`
	CleanupInterval   Duration `koanf:"cleanup_interval"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry export configuration.
type ObservabilityConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	ExportInterval Duration `koanf:"export_interval"`
}

// applyDefaults fills in zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9180
	}
	if cfg.Server.ShutdownTimeout.Duration() == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Tracker.MaxChainsInMemory == 0 {
		cfg.Tracker.MaxChainsInMemory = 100
	}
	if cfg.Tracker.MaxChainDuration.Duration() == 0 {
		cfg.Tracker.MaxChainDuration = Duration(5 * time.Minute)
	}
	if cfg.Tracker.MaxChainLength == 0 {
		cfg.Tracker.MaxChainLength = 100
	}
	if cfg.Tracker.CleanupInterval.Duration() == 0 {
		cfg.Tracker.CleanupInterval = Duration(30 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "causalityd"
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = "0.1.0"
	}
	if cfg.Observability.ExportInterval.Duration() == 0 {
		cfg.Observability.ExportInterval = Duration(15 * time.Second)
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	if c.Tracker.MaxChainsInMemory <= 0 {
		return fmt.Errorf("tracker.max_chains_in_memory must be > 0, got %d", c.Tracker.MaxChainsInMemory)
	}
	if c.Tracker.MaxChainDuration.Duration() <= 0 {
		return fmt.Errorf("tracker.max_chain_duration must be positive")
	}
	if c.Tracker.MaxChainLength <= 1 {
		return fmt.Errorf("tracker.max_chain_length must be > 1, got %d", c.Tracker.MaxChainLength)
	}
	if c.Tracker.CleanupInterval.Duration() <= 0 {
		return fmt.Errorf("tracker.cleanup_interval must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Observability.Enabled {
		if c.Observability.Endpoint == "" {
			return fmt.Errorf("observability.endpoint is required when observability is enabled")
		}
		if c.Observability.Protocol != "grpc" && c.Observability.Protocol != "http/protobuf" {
			return fmt.Errorf("observability.protocol must be 'grpc' or 'http/protobuf', got %q", c.Observability.Protocol)
		}
		if c.Observability.ExportInterval.Duration() <= 0 {
			return fmt.Errorf("observability.export_interval must be positive")
		}
	}

	return nil
}
