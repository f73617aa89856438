// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package config loads daemon configuration from layered sources:
// struct defaults, then an optional YAML file, then environment
// variables. Precedence: ENV > file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/orbistech/allianced/internal/pnw"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/allianced/config.yaml",
	"/etc/allianced/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full daemon configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Vault      VaultConfig      `koanf:"vault"`
	Gateway    GatewayConfig    `koanf:"gateway"`
	Game       GameConfig       `koanf:"game"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// DatabaseConfig configures the badger store.
type DatabaseConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// VaultConfig configures the credential vault. The passphrase is
// deployment-wide; rotating it invalidates every stored credential.
type VaultConfig struct {
	Passphrase string `koanf:"passphrase"`
}

// GatewayConfig configures the chat gateway connection.
type GatewayConfig struct {
	URL string `koanf:"url"`
}

// GameConfig configures the game API client shared settings. Each
// tenant session gets its own client with its own key.
type GameConfig struct {
	Endpoint          string        `koanf:"endpoint"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
}

// SupervisorConfig tunes session supervision.
type SupervisorConfig struct {
	StopGrace time.Duration `koanf:"stop_grace"`
}

// MetricsConfig configures the Prometheus /metrics listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:     "/data/allianced",
			InMemory: false,
		},
		Vault: VaultConfig{
			Passphrase: "",
		},
		Gateway: GatewayConfig{
			URL: "",
		},
		Game: GameConfig{
			Endpoint:          pnw.DefaultEndpoint,
			Timeout:           15 * time.Second,
			RequestsPerMinute: 60,
		},
		Supervisor: SupervisorConfig{
			StopGrace: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. struct defaults
//  2. optional YAML config file
//  3. environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps deployment environment variables to config paths.
// ENCRYPTION_KEY keeps its historical name; it predates this daemon.
var envMappings = map[string]string{
	"encryption_key": "vault.passphrase",

	"database_path":      "database.path",
	"database_in_memory": "database.in_memory",

	"gateway_url": "gateway.url",

	"pnw_api_endpoint":        "game.endpoint",
	"pnw_request_timeout":     "game.timeout",
	"pnw_requests_per_minute": "game.requests_per_minute",

	"session_stop_grace": "supervisor.stop_grace",

	"metrics_enabled": "metrics.enabled",
	"metrics_addr":    "metrics.addr",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf
// path. Unmapped variables are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Validate checks the loaded configuration for deployability.
func (c *Config) Validate() error {
	var errs []error

	if c.Vault.Passphrase == "" {
		errs = append(errs, errors.New("vault passphrase is required (ENCRYPTION_KEY)"))
	}
	if c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway url is required (GATEWAY_URL)"))
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Game.Endpoint == "" {
		errs = append(errs, errors.New("game api endpoint is required"))
	}
	if c.Game.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("game api timeout must be positive, got %s", c.Game.Timeout))
	}
	if c.Game.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("game api requests per minute must be at least 1, got %d", c.Game.RequestsPerMinute))
	}
	if c.Supervisor.StopGrace <= 0 {
		errs = append(errs, fmt.Errorf("session stop grace must be positive, got %s", c.Supervisor.StopGrace))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics addr is required when metrics are enabled"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
