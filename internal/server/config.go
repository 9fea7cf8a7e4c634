// Package server provides configuration helpers that define runtime defaults,
// validation, and origin rules for the whiteboard relay.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultPort            = ":8080"
	defaultBasePath        = "/api/v1"
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 256
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds the server configuration settings.
type Config struct {
	Port            string        `envconfig:"SERVER_PORT" default:":8080" validate:"required"`
	BasePath        string        `envconfig:"BASE_PATH" default:"/api/v1" validate:"omitempty,startswith=/"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize  int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	SendBufferSize  int           `envconfig:"SEND_BUFFER_SIZE" default:"256"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

var validate = validator.New()

func defaultConfig() Config {
	return Config{
		Port:     defaultPort,
		BasePath: defaultBasePath,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  defaultMaxMessageSize,
		SendBufferSize:  defaultSendBufferSize,
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads the configuration from environment variables, falling back
// to defaults for anything unset, and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate replaces non-positive sizes with their defaults, normalizes the
// base path and origins, and rejects values that cannot be repaired.
func (c *Config) Validate() error {
	c.sanitize()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

func (c *Config) sanitize() {
	if c.Port == "" {
		c.Port = defaultPort
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	c.BasePath = strings.TrimRight(strings.TrimSpace(c.BasePath), "/")

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins
}

// WhiteboardPath is the websocket endpoint under the configured base path.
func (c *Config) WhiteboardPath() string {
	return c.BasePath + "/whiteboard"
}

// StatsPath is the roster and history snapshot endpoint under the base path.
func (c *Config) StatsPath() string {
	return c.BasePath + "/stats"
}
