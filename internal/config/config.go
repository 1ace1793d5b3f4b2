package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort        = 3000
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultQueueSize       = 16
	DefaultShutdownTimeout = 5 * time.Second
)

// Config is the top-level configuration. Fields map 1:1 to the YAML file.
type Config struct {
	// HTTPPort is the port the dashboard and WebSocket endpoint listen on.
	HTTPPort int `yaml:"http_port"`

	// LineFormat rewrites input lines to JSON: none | logfmt | nginx.
	LineFormat string `yaml:"line_format"`

	// ShutdownTimeout bounds the HTTP server's graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Log       LogConfig       `yaml:"log"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: text | json.
	Format string `yaml:"format"`
}

// WebSocketConfig holds subscriber connection limits.
type WebSocketConfig struct {
	// QueueSize is the per-subscriber line buffer. A subscriber whose buffer
	// is full when a line arrives is disconnected.
	QueueSize int `yaml:"queue_size"`

	// MaxConnections caps concurrent connections. Zero means unlimited.
	MaxConnections int `yaml:"max_connections"`

	// UpgradesPerSecond limits new connections per second. Zero disables it.
	UpgradesPerSecond float64 `yaml:"upgrades_per_second"`

	// UpgradeBurst is the burst size for UpgradesPerSecond.
	UpgradeBurst int `yaml:"upgrade_burst"`
}

// envOverrides are the environment variables that override file values.
// applyEnv seeds it from the merged config, and env.Load only touches the
// fields whose variable is set.
type envOverrides struct {
	Port           int    `env:"LENO_PORT"`
	LogLevel       string `env:"LENO_LOG_LEVEL"`
	LogFormat      string `env:"LENO_LOG_FORMAT"`
	LineFormat     string `env:"LENO_LINE_FORMAT"`
	MaxConnections int    `env:"LENO_MAX_CONNECTIONS"`
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), a local .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: ignoring unreadable .env file", "err", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address for HTTPPort.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTPPort:        DefaultHTTPPort,
		ShutdownTimeout: DefaultShutdownTimeout,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		WebSocket: WebSocketConfig{
			QueueSize: DefaultQueueSize,
		},
	}
}

func applyEnv(cfg *Config) error {
	ov := envOverrides{
		Port:           cfg.HTTPPort,
		LogLevel:       cfg.Log.Level,
		LogFormat:      cfg.Log.Format,
		LineFormat:     cfg.LineFormat,
		MaxConnections: cfg.WebSocket.MaxConnections,
	}
	if err := env.Load(&ov, nil); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	cfg.HTTPPort = ov.Port
	cfg.WebSocket.MaxConnections = ov.MaxConnections
	// A variable set to the empty string counts as unset.
	if ov.LogLevel != "" {
		cfg.Log.Level = ov.LogLevel
	}
	if ov.LogFormat != "" {
		cfg.Log.Format = ov.LogFormat
	}
	if ov.LineFormat != "" {
		cfg.LineFormat = ov.LineFormat
	}
	return nil
}

// validate checks structural constraints on the merged configuration.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q unknown: want text|json", cfg.Log.Format)
	}
	switch cfg.LineFormat {
	case "", "none", "logfmt", "nginx":
	default:
		return fmt.Errorf("line_format %q unknown: want none|logfmt|nginx", cfg.LineFormat)
	}
	if cfg.WebSocket.QueueSize <= 0 {
		return fmt.Errorf("websocket.queue_size must be positive")
	}
	if cfg.WebSocket.MaxConnections < 0 {
		return fmt.Errorf("websocket.max_connections must not be negative")
	}
	if cfg.WebSocket.UpgradesPerSecond < 0 {
		return fmt.Errorf("websocket.upgrades_per_second must not be negative")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}
