// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (1MB).
	DefaultMaxRequestSize = 1 << 20

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultAuditLimitMB is the default log directory size limit for the
	// audit check.
	DefaultAuditLimitMB = 512

	// DefaultAuditInterval is the default spacing between audit checks.
	DefaultAuditInterval = 10 * time.Minute
)

// Config is the root configuration structure.
type Config struct {
	App        AppConfig        `koanf:"app"        validate:"required"`
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Log        LogConfig        `koanf:"log"        validate:"required"`
	Instrument InstrumentConfig `koanf:"instrument"`
	Auth       AuthConfig       `koanf:"auth"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string         `koanf:"level"  validate:"required,oneof=debug info warn error"`
	Format string         `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig  `koanf:"file"`
	Audit  LogAuditConfig `koanf:"audit"`
}

// LogFileConfig contains rolling log file settings. Format selects the file
// renderer; flat and json take a field template of %(name)s placeholders.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	Format     string `koanf:"format"      validate:"omitempty,oneof=flat json xml"`
	Template   string `koanf:"template"`
	TimeLayout string `koanf:"time_layout"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// LogAuditConfig contains log directory size auditing settings.
type LogAuditConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir"      validate:"required_if=Enabled true"`
	LimitMB  int           `koanf:"limit_mb" validate:"omitempty,min=1"`
	Interval time.Duration `koanf:"interval" validate:"omitempty,min=1s"`
}

// InstrumentConfig contains request instrumentation settings.
type InstrumentConfig struct {
	RequestIDHeader string `koanf:"request_id_header"`
	CountQueries    bool   `koanf:"count_queries"`
	QueryThreshold  int    `koanf:"query_threshold" validate:"omitempty,min=1"`
}

// AuthConfig contains the trusted identity headers an upstream gateway sets.
type AuthConfig struct {
	Enabled        bool   `koanf:"enabled"`
	SubjectHeader  string `koanf:"subject_header"  validate:"required_if=Enabled true"`
	UsernameHeader string `koanf:"username_header" validate:"required_if=Enabled true"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=sqlite"`
	DSN    string `koanf:"dsn"    validate:"required"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "loggate",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.format":      "flat",
		"log.file.template":    "%(levelname)s %(asctime)s %(message)s %(context)s",
		"log.file.time_layout": "2006-01-02 15:04:05",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,
		"log.audit.enabled":    false,
		"log.audit.dir":        "./logs",
		"log.audit.limit_mb":   DefaultAuditLimitMB,
		"log.audit.interval":   "10m",

		"instrument.request_id_header": "X-Request-ID",
		"instrument.count_queries":     false,
		"instrument.query_threshold":   0,

		"auth.enabled":         false,
		"auth.subject_header":  "X-User-ID",
		"auth.username_header": "X-User-Name",

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "loggate",
		"telemetry.sampling_rate": 1.0,

		"database.driver": "sqlite",
		"database.dsn":    "file:loggate.db?_pragma=journal_mode(WAL)",
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (LOGGATE_ prefix)
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err = k.Load(env.Provider("LOGGATE_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "LOGGATE_")),
			"_",
			".",
		)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
