// Package config provides host configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Transports a host can serve pages over.
const (
	TransportNATS      = "nats"
	TransportWebSocket = "websocket"
)

// Config holds webapps-host and webapps-script configuration.
type Config struct {
	// COMMS: connect to NATS at COMMSURL, or start one in-process when
	// COMMSEmbedded is set.
	COMMSURL          string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName         string `envconfig:"SERVICE_NAME" default:"webapps-host"`
	COMMSEmbedded     bool   `envconfig:"COMMS_EMBEDDED" default:"false"`
	COMMSEmbeddedPort int    `envconfig:"COMMS_EMBEDDED_PORT" default:"4222"`

	// Channel between the page and the host
	Transport      string `envconfig:"WEBAPPS_TRANSPORT" default:"nats"`
	Session        string `envconfig:"WEBAPPS_SESSION" default:"default"`
	WebSocketPath  string `envconfig:"WEBAPPS_WS_PATH" default:"/bridge"`
	WebSocketURL   string `envconfig:"WEBAPPS_WS_URL" default:"ws://127.0.0.1:8080/bridge"`
	CallbackPrefix string `envconfig:"WEBAPPS_CALLBACK_PREFIX"`

	// Manifest and API version
	ManifestFile string `envconfig:"WEBAPPS_MANIFEST_FILE"`
	APIVersion   string `envconfig:"WEBAPPS_API_VERSION"`

	// Object lifecycle events (empty subject = derive from manifest)
	ObjectEventsEnabled bool   `envconfig:"OBJECT_EVENTS_ENABLED" default:"true"`
	ObjectEventSubject  string `envconfig:"OBJECT_EVENT_SUBJECT"`

	// HTTP status endpoint (HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Script runner
	ScriptTimeout time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"30s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	return &c, nil
}

// ListenAddr returns HTTPAddr, or ":<HTTPPort>" when it is unset.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateForServe checks required config when running the host.
func (c *Config) ValidateForServe() error {
	if err := c.validateChannel(); err != nil {
		return err
	}
	if c.Transport == TransportWebSocket && !strings.HasPrefix(c.WebSocketPath, "/") {
		return fmt.Errorf("%s - WEBAPPS_WS_PATH must start with /", logPrefix)
	}
	if c.COMMSEmbedded && (c.COMMSEmbeddedPort < 0 || c.COMMSEmbeddedPort > 65535) {
		return fmt.Errorf("%s - COMMS_EMBEDDED_PORT out of range: %d", logPrefix, c.COMMSEmbeddedPort)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForScript checks required config when running a page script
// against a host.
func (c *Config) ValidateForScript() error {
	if err := c.validateChannel(); err != nil {
		return err
	}
	if c.Transport == TransportWebSocket && c.WebSocketURL == "" {
		return fmt.Errorf("%s - WEBAPPS_WS_URL is required for the websocket transport", logPrefix)
	}
	if c.ScriptTimeout <= 0 {
		return fmt.Errorf("%s - SCRIPT_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

func (c *Config) validateChannel() error {
	switch c.Transport {
	case TransportNATS:
		if c.Session == "" {
			return fmt.Errorf("%s - WEBAPPS_SESSION is required for the nats transport", logPrefix)
		}
		if !c.COMMSEmbedded && c.COMMSURL == "" {
			return fmt.Errorf("%s - COMMS_URL is required for the nats transport", logPrefix)
		}
	case TransportWebSocket:
	default:
		return fmt.Errorf("%s - unknown WEBAPPS_TRANSPORT %q (want nats or websocket)", logPrefix, c.Transport)
	}
	return nil
}
