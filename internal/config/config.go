// Package config loads process-level settings from ARBOR_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/caarlos0/env/v11"
)

// Config holds the settings shared by the CLI commands. Flags override them.
type Config struct {
	LogLevel  string `env:"ARBOR_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ARBOR_LOG_FORMAT" envDefault:"text"`

	HTTPAddr string `env:"ARBOR_HTTP_ADDR" envDefault:":8080"`

	RemoteDebugger    string        `env:"ARBOR_REMOTE_DEBUGGER"`
	DebuggerBacklog   int           `env:"ARBOR_DEBUGGER_BACKLOG" envDefault:"1000"`
	DebuggerReconnect time.Duration `env:"ARBOR_DEBUGGER_RECONNECT" envDefault:"10s"`

	RedisAddr     string        `env:"ARBOR_REDIS_ADDR"`
	RedisPassword string        `env:"ARBOR_REDIS_PASSWORD"`
	RedisDB       int           `env:"ARBOR_REDIS_DB"`
	RedisPrefix   string        `env:"ARBOR_REDIS_PREFIX" envDefault:"arbor:trace:"`
	TraceDir      string        `env:"ARBOR_TRACE_DIR"`
	TraceTTL      time.Duration `env:"ARBOR_TRACE_TTL"`
	// TraceRedact lists key patterns whose values are masked before events are stored.
	TraceRedact []string `env:"ARBOR_TRACE_REDACT" envSeparator:","`
	// TraceKey is a base64 AES-256 key encrypting stored event data.
	TraceKey string `env:"ARBOR_TRACE_KEY"`

	OTelEndpoint string `env:"ARBOR_OTEL_ENDPOINT"`
	ServiceName  string `env:"ARBOR_SERVICE_NAME" envDefault:"arbor"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.DebuggerBacklog < 0 {
		errs = append(errs, errors.New("debugger backlog must not be negative"))
	}
	if c.TraceTTL < 0 {
		errs = append(errs, errors.New("trace ttl must not be negative"))
	}
	if c.TraceKey != "" {
		if _, err := c.TraceKeyBytes(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.RedisAddr != "" && c.TraceDir != "" {
		errs = append(errs, errors.New("ARBOR_REDIS_ADDR and ARBOR_TRACE_DIR are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// TraceKeyBytes decodes TraceKey. It is nil when no key is configured.
func (c Config) TraceKeyBytes() ([]byte, error) {
	if c.TraceKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.TraceKey)
	if err != nil {
		return nil, fmt.Errorf("ARBOR_TRACE_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ARBOR_TRACE_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Logger builds the process logger described by the configuration.
func (c Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.LogLevel)
	return logging.NewWithWriter(os.Stderr, level, logging.Format(c.LogFormat))
}
