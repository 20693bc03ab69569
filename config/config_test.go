package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"mqtt": {
			"broker": "tcp://localhost:1883"
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != TransportMQTT {
		t.Errorf("Expected default transport %q, got %q", TransportMQTT, cfg.Transport)
	}
	if cfg.MQTT.ClientID == "" {
		t.Error("Expected auto-generated client id")
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "mqtt-session-") {
		t.Errorf("Unexpected client id format: %q", cfg.MQTT.ClientID)
	}
	if cfg.MQTT.KeepAlive != 60 {
		t.Errorf("Expected default keep alive 60, got %d", cfg.MQTT.KeepAlive)
	}
	if cfg.MQTT.ConnectTimeout != 10 {
		t.Errorf("Expected default connect timeout 10, got %d", cfg.MQTT.ConnectTimeout)
	}
	if cfg.Buffer.Size != 100 {
		t.Errorf("Expected default buffer size 100, got %d", cfg.Buffer.Size)
	}
	if !cfg.Buffer.IsEnabled() {
		t.Error("Expected buffer enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Metrics.Address != ":2112" {
		t.Errorf("Expected default metrics address :2112, got %s", cfg.Metrics.Address)
	}
}

func TestBufferEnabledDefaultsAndOverride(t *testing.T) {
	// Omitting the buffer section enables it
	path := writeConfigFile(t, `{
		"mqtt": {"broker": "tcp://localhost:1883"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Buffer.IsEnabled() {
		t.Error("Expected buffer enabled when buffer section omitted")
	}

	// An explicit false is preserved through defaulting
	path = writeConfigFile(t, `{
		"mqtt": {"broker": "tcp://localhost:1883"},
		"buffer": {"enabled": false}
	}`)
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Buffer.IsEnabled() {
		t.Error("Expected explicit enabled=false to be preserved")
	}
	if cfg.Buffer.Size != 100 {
		t.Errorf("Expected size default to still apply, got %d", cfg.Buffer.Size)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)
	_, err := Load(path)
	if err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestBrokerURIValidation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"Valid tcp", "tcp://broker:1883", false},
		{"Valid ssl", "ssl://broker:8883", false},
		{"Valid ws", "ws://broker:8080", false},
		{"Valid wss", "wss://broker:8443", false},
		{"Empty uri", "", true},
		{"Unsupported scheme", "http://broker:1883", true},
		{"Unsupported mqtt scheme", "mqtt://broker:1883", true},
		{"No host", "tcp://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBrokerURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateBrokerURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
		})
	}
}

func TestWillValidation(t *testing.T) {
	tests := []struct {
		name    string
		will    WillConfig
		wantErr bool
	}{
		{"Valid will", WillConfig{Topic: "status/offline", Payload: "gone", QoS: 1}, false},
		{"Empty topic", WillConfig{Payload: "gone"}, true},
		{"Single-level wildcard", WillConfig{Topic: "status/+/offline"}, true},
		{"Multi-level wildcard", WillConfig{Topic: "status/#"}, true},
		{"Invalid qos", WillConfig{Topic: "status/offline", QoS: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWill(&tt.will)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateWill() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTLSValidation(t *testing.T) {
	tests := []struct {
		name    string
		tls     TLSConfig
		wantErr bool
	}{
		{"Disabled", TLSConfig{}, false},
		{"Complete", TLSConfig{Enable: true, CertFile: "c.pem", KeyFile: "k.pem", CAFile: "ca.pem"}, false},
		{"Missing cert", TLSConfig{Enable: true, KeyFile: "k.pem", CAFile: "ca.pem"}, true},
		{"Missing key", TLSConfig{Enable: true, CertFile: "c.pem", CAFile: "ca.pem"}, true},
		{"Missing ca", TLSConfig{Enable: true, CertFile: "c.pem", KeyFile: "k.pem"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTLS(&tt.tls)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTLS() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNATSTransportValidation(t *testing.T) {
	path := writeConfigFile(t, `{
		"transport": "nats",
		"mqtt": {"broker": "tcp://unused:1883"}
	}`)

	if _, err := Load(path); err == nil {
		t.Error("Expected error for nats transport without server urls")
	}

	path = writeConfigFile(t, `{
		"transport": "nats",
		"nats": {"urls": ["nats://localhost:4222"]}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transport != TransportNATS {
		t.Errorf("Expected nats transport, got %s", cfg.Transport)
	}
	if cfg.NATS.MaxReconnectInterval != 2 {
		t.Errorf("Expected default nats reconnect interval 2, got %d", cfg.NATS.MaxReconnectInterval)
	}

	path = writeConfigFile(t, `{
		"transport": "nats",
		"nats": {"urls": ["nats://localhost:4222"], "autoReconnect": true, "maxReconnectInterval": 5}
	}`)

	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.NATS.AutoReconnect {
		t.Error("Expected autoReconnect to be honored")
	}
	if cfg.NATS.MaxReconnectInterval != 5 {
		t.Errorf("Expected reconnect interval 5, got %d", cfg.NATS.MaxReconnectInterval)
	}
}

func TestSubscriptionValidation(t *testing.T) {
	path := writeConfigFile(t, `{
		"mqtt": {"broker": "tcp://localhost:1883"},
		"subscriptions": [{"topic": "sensors/#", "qos": 3}]
	}`)

	if _, err := Load(path); err == nil {
		t.Error("Expected error for subscription with qos 3")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	cfg.ApplyOverrides("debug", ":9100", "/m", 30*time.Second)

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level override debug, got %s", cfg.Logging.Level)
	}
	if cfg.Metrics.Address != ":9100" {
		t.Errorf("Expected metrics address override :9100, got %s", cfg.Metrics.Address)
	}
	if cfg.Metrics.Path != "/m" {
		t.Errorf("Expected metrics path override /m, got %s", cfg.Metrics.Path)
	}
	if cfg.Metrics.UpdateInterval != "30s" {
		t.Errorf("Expected metrics interval override 30s, got %s", cfg.Metrics.UpdateInterval)
	}

	// Zero values leave the config untouched
	cfg.ApplyOverrides("", "", "", 0)
	if cfg.Logging.Level != "debug" {
		t.Error("Empty override should not reset log level")
	}
}
