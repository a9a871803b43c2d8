package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration. Values come from an
// optional YAML file overlaid by environment variables, so a deployed
// instance can be tuned without editing the file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Hunt     HuntConfig     `yaml:"hunt"`
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level name to a slog.Level.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	switch c.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.Level)
	}
}

// DatabaseConfig holds store connection parameters. Driver selects the
// SQL dialect: "postgres" for shared deployments, "sqlite" for
// single-user ones.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdle         int           `yaml:"max_idle"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// HuntConfig holds defaults for dispatch and trigger runs. The store
// connection pool must be sized at least as large as Concurrency.
type HuntConfig struct {
	Concurrency  int `yaml:"concurrency"`
	TriggerLimit int `yaml:"trigger_limit"`
	MaxFailures  int `yaml:"max_failures"`
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogLevel  = "info"
	defaultLogFormat = "json"

	defaultDriver          = "sqlite"
	defaultDatabaseURL     = "metrico.db"
	defaultMaxConnections  = 25
	defaultMaxIdle         = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnectTimeout  = 10 * time.Second

	defaultConcurrency  = 8
	defaultTriggerLimit = 100
	defaultMaxFailures  = 5
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			Driver:          defaultDriver,
			URL:             defaultDatabaseURL,
			MaxConnections:  defaultMaxConnections,
			MaxIdle:         defaultMaxIdle,
			ConnMaxLifetime: defaultConnMaxLifetime,
			ConnectTimeout:  defaultConnectTimeout,
		},
		Hunt: HuntConfig{
			Concurrency:  defaultConcurrency,
			TriggerLimit: defaultTriggerLimit,
			MaxFailures:  defaultMaxFailures,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (metrico.yaml is picked up automatically when path is empty), then
// environment variable overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("metrico.yaml"); err == nil {
			path = "metrico.yaml"
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	} else if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("HUNT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HUNT_CONCURRENCY: %w", err)
		}
		cfg.Hunt.Concurrency = n
	}
	if v := os.Getenv("HUNT_TRIGGER_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HUNT_TRIGGER_LIMIT: %w", err)
		}
		cfg.Hunt.TriggerLimit = n
	}
	return nil
}

func (c Config) validate() error {
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q: must be 'json' or 'text'", c.Logging.Format)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database driver %q: must be 'postgres' or 'sqlite'", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Hunt.Concurrency <= 0 {
		return fmt.Errorf("hunt concurrency must be positive, got %d", c.Hunt.Concurrency)
	}
	if c.Hunt.TriggerLimit <= 0 {
		return fmt.Errorf("hunt trigger limit must be positive, got %d", c.Hunt.TriggerLimit)
	}
	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}
