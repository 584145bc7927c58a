// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mambaweb/mamba/core/logging"
	"gopkg.in/yaml.v3"
)

// Module loaders.
const (
	LoaderScript = "script"
	LoaderStatic = "static"
)

// Config is the root configuration structure (mamba.yaml).
type Config struct {
	Name          string         `yaml:"name"`
	Development   bool           `yaml:"development"`
	ReloadEnabled bool           `yaml:"reload_enabled"`
	Server        ServerConfig   `yaml:"server"`
	Modules       ModulesConfig  `yaml:"modules"`
	Logging       LoggingConfig  `yaml:"logging"`
	Database      DatabaseConfig `yaml:"database"`
	Metrics       MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModulesConfig configures module discovery.
type ModulesConfig struct {
	Controllers string `yaml:"controllers"` // controller module directory
	Models      string `yaml:"models"`      // model module directory
	Package     string `yaml:"package"`     // import path prefix for modules
	Extension   string `yaml:"extension"`   // module file extension
	Loader      string `yaml:"loader"`      // "script" or "static"
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level   string                `yaml:"level"`   // "debug", "info", "warn", "error"
	Format  string                `yaml:"format"`  // "json" or "console"
	LogDir  string                `yaml:"log_dir"` // daily JSON log files (empty = disabled)
	Syslog  bool                  `yaml:"syslog"`
	Graylog logging.GraylogConfig `yaml:"graylog"`
}

// DatabaseConfig configures the module journal database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path; empty disables the journal
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	MAMBA_NAME              - Application name (default: mamba)
//	MAMBA_DEVELOPMENT       - Development mode (disables graylog)
//	MAMBA_RELOAD_ENABLED    - Reload modules when their files change
//	MAMBA_SERVER_HOST       - Server host (default: 0.0.0.0)
//	MAMBA_SERVER_PORT       - Server port (default: 1936)
//	MAMBA_CONTROLLERS_DIR   - Controller directory (default: application/controller)
//	MAMBA_MODELS_DIR        - Model directory (default: application/model)
//	MAMBA_MODULE_LOADER     - script or static (default: script)
//	MAMBA_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	MAMBA_LOG_FORMAT        - Log format: json or console (default: json)
//	MAMBA_LOG_DIR           - Directory for daily JSON log files
//	MAMBA_LOG_SYSLOG        - Also log to syslog
//	MAMBA_GRAYLOG_HOST      - Graylog GELF/UDP host (enables graylog)
//	MAMBA_GRAYLOG_PORT      - Graylog GELF/UDP port (default: 12201)
//	MAMBA_DATABASE_DSN      - Module journal database path
//	MAMBA_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads from the file if it exists, otherwise from
// environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies MAMBA_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAMBA_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("MAMBA_DEVELOPMENT"); v != "" {
		cfg.Development = parseBool(v)
	}
	if v := os.Getenv("MAMBA_RELOAD_ENABLED"); v != "" {
		cfg.ReloadEnabled = parseBool(v)
	}

	// Server configuration
	if v := os.Getenv("MAMBA_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MAMBA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MAMBA_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("MAMBA_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Module discovery
	if v := os.Getenv("MAMBA_CONTROLLERS_DIR"); v != "" {
		cfg.Modules.Controllers = v
	}
	if v := os.Getenv("MAMBA_MODELS_DIR"); v != "" {
		cfg.Modules.Models = v
	}
	if v := os.Getenv("MAMBA_MODULE_LOADER"); v != "" {
		cfg.Modules.Loader = v
	}

	// Logging configuration
	if v := os.Getenv("MAMBA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MAMBA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MAMBA_LOG_DIR"); v != "" {
		cfg.Logging.LogDir = v
	}
	if v := os.Getenv("MAMBA_LOG_SYSLOG"); v != "" {
		cfg.Logging.Syslog = parseBool(v)
	}
	if v := os.Getenv("MAMBA_GRAYLOG_HOST"); v != "" {
		cfg.Logging.Graylog.Host = v
		cfg.Logging.Graylog.Active = true
	}
	if v := os.Getenv("MAMBA_GRAYLOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Logging.Graylog.Port = port
		}
	}

	// Database configuration
	if v := os.Getenv("MAMBA_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Metrics configuration
	if v := os.Getenv("MAMBA_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MAMBA_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = "mamba"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1936
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Modules.Controllers == "" {
		cfg.Modules.Controllers = "application/controller"
	}
	if cfg.Modules.Models == "" {
		cfg.Modules.Models = "application/model"
	}
	if cfg.Modules.Extension == "" {
		cfg.Modules.Extension = ".go"
	}
	if cfg.Modules.Loader == "" {
		cfg.Modules.Loader = LoaderScript
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Graylog.Active {
		if cfg.Logging.Graylog.Host == "" {
			cfg.Logging.Graylog.Host = "127.0.0.1"
		}
		if cfg.Logging.Graylog.Port == 0 {
			cfg.Logging.Graylog.Port = 12201
		}
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	validLoaders := map[string]bool{LoaderScript: true, LoaderStatic: true}
	if !validLoaders[cfg.Modules.Loader] {
		return fmt.Errorf("modules.loader must be 'script' or 'static', got %q", cfg.Modules.Loader)
	}
	if !strings.HasPrefix(cfg.Modules.Extension, ".") {
		return fmt.Errorf("modules.extension must start with a dot, got %q", cfg.Modules.Extension)
	}
	if cfg.Modules.Controllers == cfg.Modules.Models {
		return fmt.Errorf("modules.controllers and modules.models must be different directories")
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Graylog.Active && (cfg.Logging.Graylog.Port < 1 || cfg.Logging.Graylog.Port > 65535) {
		return fmt.Errorf("logging.graylog.port must be between 1 and 65535, got %d", cfg.Logging.Graylog.Port)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", cfg.Metrics.Path)
	}

	return nil
}

// Logger returns the logging configuration for this application.
func (c *Config) Logger() logging.Config {
	return logging.Config{
		Name:        c.Name,
		Level:       c.Logging.Level,
		Format:      c.Logging.Format,
		Development: c.Development,
		Syslog:      c.Logging.Syslog,
		LogDir:      c.Logging.LogDir,
		Graylog:     c.Logging.Graylog,
	}
}
