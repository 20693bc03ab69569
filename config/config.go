package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transport selects the backend the session connects through.
const (
	TransportMQTT = "mqtt"
	TransportNATS = "nats"
)

type Config struct {
	Transport     string               `json:"transport"`
	MQTT          MQTTConfig           `json:"mqtt"`
	NATS          *NATSConfig          `json:"nats,omitempty"`
	Buffer        BufferConfig         `json:"buffer"`
	Subscriptions []SubscriptionConfig `json:"subscriptions"`
	Logging       LogConfig            `json:"logging"`
	Metrics       MetricsConfig        `json:"metrics"`
}

// MQTTConfig holds the connection parameters for the primary transport.
// Values are validated once at load time; the session treats the loaded
// configuration as immutable.
type MQTTConfig struct {
	Broker               string      `json:"broker"`   // tcp|ssl|ws|wss URI
	ClientID             string      `json:"clientId"` // auto-generated when empty
	Username             string      `json:"username"`
	Password             string      `json:"password"`
	KeepAlive            int         `json:"keepAlive"`            // seconds
	ConnectTimeout       int         `json:"connectTimeout"`       // seconds
	MaxReconnectInterval int         `json:"maxReconnectInterval"` // seconds
	CleanSession         bool        `json:"cleanSession"`
	AutoReconnect        bool        `json:"autoReconnect"`
	MaxInflight          int         `json:"maxInflight"`
	TLS                  TLSConfig   `json:"tls"`
	Will                 *WillConfig `json:"will,omitempty"`
}

type TLSConfig struct {
	Enable   bool   `json:"enable"`
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
	CAFile   string `json:"caFile"`
}

// WillConfig describes the last-will message registered with the broker
// at connect time.
type WillConfig struct {
	Topic    string `json:"topic"`
	Payload  string `json:"payload"`
	QoS      byte   `json:"qos"`
	Retained bool   `json:"retained"`
}

// NATSConfig holds connection parameters for the alternative NATS transport.
type NATSConfig struct {
	URLs                 []string  `json:"urls"`
	ClientID             string    `json:"clientId"`
	Username             string    `json:"username"`
	Password             string    `json:"password"`
	AutoReconnect        bool      `json:"autoReconnect"`
	MaxReconnectInterval int       `json:"maxReconnectInterval"` // seconds between attempts
	TLS                  TLSConfig `json:"tls"`
}

// BufferConfig governs the transport-level queue for publishes issued while
// the network link is down. DropOldest=false keeps the oldest entries and
// drops incoming messages once the buffer is full. Enabled is a pointer so
// an omitted value defaults to true while an explicit false is honored.
type BufferConfig struct {
	Enabled    *bool `json:"enabled,omitempty"`
	Size       int   `json:"size"`
	Persist    bool  `json:"persist"`
	DropOldest bool  `json:"dropOldest"`
}

// IsEnabled reports whether the disconnected-publish buffer is on,
// treating an unset value as enabled.
func (b *BufferConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// SubscriptionConfig is a topic the daemon subscribes to at startup.
type SubscriptionConfig struct {
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
}

type LogConfig struct {
	Level      string `json:"level"`    // debug, info, warn, error
	Encoding   string `json:"encoding"` // json or console
	LogToFile  bool   `json:"logToFile"`
	Directory  string `json:"directory"`
	MaxSize    int    `json:"maxSize"` // megabytes
	MaxAge     int    `json:"maxAge"`  // days
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `json:"enabled"`
	Address        string `json:"address"`
	Path           string `json:"path"`
	UpdateInterval string `json:"updateInterval"` // Duration string
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportMQTT
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = fmt.Sprintf("mqtt-session-%s", uuid.NewString()[:8])
	}
	if c.MQTT.KeepAlive <= 0 {
		c.MQTT.KeepAlive = 60
	}
	if c.MQTT.ConnectTimeout <= 0 {
		c.MQTT.ConnectTimeout = 10
	}
	if c.MQTT.MaxReconnectInterval <= 0 {
		c.MQTT.MaxReconnectInterval = 60
	}
	if c.MQTT.MaxInflight <= 0 {
		c.MQTT.MaxInflight = 20
	}

	if c.NATS != nil && c.NATS.MaxReconnectInterval <= 0 {
		c.NATS.MaxReconnectInterval = 2
	}

	if c.Buffer.Enabled == nil {
		enabled := true
		c.Buffer.Enabled = &enabled
	}
	if c.Buffer.Size <= 0 {
		c.Buffer.Size = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
	if c.Logging.LogToFile && c.Logging.MaxSize <= 0 {
		c.Logging.MaxSize = 10
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":2112"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.UpdateInterval == "" {
		c.Metrics.UpdateInterval = "15s"
	}
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	switch cfg.Transport {
	case TransportMQTT:
		if err := validateBrokerURI(cfg.MQTT.Broker); err != nil {
			return err
		}
	case TransportNATS:
		if cfg.NATS == nil || len(cfg.NATS.URLs) == 0 {
			return fmt.Errorf("nats transport requires at least one server url")
		}
	default:
		return fmt.Errorf("invalid transport: %s", cfg.Transport)
	}

	if cfg.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt client id is required")
	}

	if err := validateTLS(&cfg.MQTT.TLS); err != nil {
		return err
	}

	if cfg.MQTT.Will != nil {
		if err := validateWill(cfg.MQTT.Will); err != nil {
			return err
		}
	}

	for _, sub := range cfg.Subscriptions {
		if sub.Topic == "" {
			return fmt.Errorf("subscription topic cannot be empty")
		}
		if sub.QoS > 2 {
			return fmt.Errorf("subscription qos must be 0, 1 or 2, got %d", sub.QoS)
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	return nil
}

// validateBrokerURI checks the server URI carries one of the supported
// schemes. The transport library accepts more; only these four are part of
// the supported surface.
func validateBrokerURI(raw string) error {
	if raw == "" {
		return fmt.Errorf("mqtt broker address is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid broker uri %q: %w", raw, err)
	}

	switch u.Scheme {
	case "tcp", "ssl", "ws", "wss":
	default:
		return fmt.Errorf("unsupported broker uri scheme %q (must be tcp, ssl, ws or wss)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("broker uri %q has no host", raw)
	}

	return nil
}

func validateTLS(tls *TLSConfig) error {
	if !tls.Enable {
		return nil
	}
	if tls.CertFile == "" {
		return fmt.Errorf("tls cert file is required when tls is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("tls key file is required when tls is enabled")
	}
	if tls.CAFile == "" {
		return fmt.Errorf("tls ca file is required when tls is enabled")
	}
	return nil
}

func validateWill(will *WillConfig) error {
	if will.Topic == "" {
		return fmt.Errorf("will topic cannot be empty")
	}
	if strings.ContainsAny(will.Topic, "+#") {
		return fmt.Errorf("will topic %q must not contain wildcards", will.Topic)
	}
	if will.QoS > 2 {
		return fmt.Errorf("will qos must be 0, 1 or 2, got %d", will.QoS)
	}
	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(logLevel, metricsAddr, metricsPath string, metricsInterval time.Duration) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
	if metricsInterval > 0 {
		c.Metrics.UpdateInterval = metricsInterval.String()
	}
}
