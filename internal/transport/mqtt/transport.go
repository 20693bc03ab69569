// Package mqtt implements the transport boundary on top of the paho MQTT
// client. Reconnection is delegated to paho's retry policy when enabled in
// configuration; this adapter reports the resulting events through the
// session's handlers.
package mqtt

import (
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-session-manager/config"
	"mqtt-session-manager/internal/logger"
	"mqtt-session-manager/internal/transport"
)

const (
	// defaultQoS applies to publishes; the session surface does not take
	// a per-publish QoS.
	defaultQoS = 1

	// opTimeout bounds subscribe, unsubscribe and publish acknowledgments.
	opTimeout = 5 * time.Second

	// disconnectQuiesce is the grace period for in-flight work, in ms.
	disconnectQuiesce = 250
)

// Transport adapts a paho client to the transport.Transport interface.
type Transport struct {
	cfg      *config.MQTTConfig
	log      *logger.Logger
	handlers transport.Handlers

	client         pahomqtt.Client
	buffer         *transport.PublishBuffer
	connectTimeout time.Duration
	everConnected  atomic.Bool
}

// New creates a paho-backed transport. No network I/O happens until
// Connect is called.
func New(cfg *config.MQTTConfig, log *logger.Logger, h transport.Handlers) (*Transport, error) {
	t := &Transport{
		cfg:            cfg,
		log:            log,
		handlers:       h,
		buffer:         transport.NewPublishBuffer(),
		connectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
	}

	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	opts.SetOnConnectHandler(t.handleConnect)
	opts.SetConnectionLostHandler(t.handleConnectionLost)
	opts.SetDefaultPublishHandler(t.handleMessage)

	t.client = pahomqtt.NewClient(opts)
	return t, nil
}

// NewWithClient creates a transport with a provided client (for testing)
func NewWithClient(cfg *config.MQTTConfig, log *logger.Logger, h transport.Handlers, client pahomqtt.Client) *Transport {
	return &Transport{
		cfg:            cfg,
		log:            log,
		handlers:       h,
		client:         client,
		buffer:         transport.NewPublishBuffer(),
		connectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
	}
}

// Connect establishes the broker connection, blocking until the broker
// acknowledges or the configured timeout elapses.
func (t *Transport) Connect() error {
	token := t.client.Connect()
	if !token.WaitTimeout(t.connectTimeout) {
		return fmt.Errorf("connect to %s timed out after %v", t.cfg.Broker, t.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s failed: %w", t.cfg.Broker, err)
	}
	return nil
}

// Subscribe adds a broker subscription. Inbound messages are routed through
// the default publish handler.
func (t *Transport) Subscribe(topic string, qos byte) error {
	token := t.client.Subscribe(topic, qos, nil)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s failed: %w", topic, err)
	}
	return nil
}

// Unsubscribe removes a broker subscription
func (t *Transport) Unsubscribe(topic string) error {
	token := t.client.Unsubscribe(topic)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("unsubscribe from %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe from %s failed: %w", topic, err)
	}
	return nil
}

// Publish sends a message. While the link is down the message goes to the
// disconnected buffer instead; buffered messages are flushed on reconnect.
func (t *Transport) Publish(topic string, payload []byte) error {
	if !t.client.IsConnected() && t.buffer.Enabled() {
		queued, dropped := t.buffer.Add(topic, payload)
		if dropped && t.handlers.PublishDropped != nil {
			t.handlers.PublishDropped(topic)
		}
		if !queued {
			t.log.Warn("disconnected buffer full, publish dropped",
				"topic", topic)
			return fmt.Errorf("publish to %s dropped: %w", topic, transport.ErrBufferFull)
		}
		t.log.Debug("buffered publish while disconnected",
			"topic", topic,
			"depth", t.buffer.Len())
		return nil
	}

	token := t.client.Publish(topic, defaultQoS, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	if t.handlers.DeliveryComplete != nil {
		t.handlers.DeliveryComplete(topic, payload)
	}
	return nil
}

// Disconnect cleanly disconnects from the broker
func (t *Transport) Disconnect() {
	if t.client.IsConnected() {
		t.client.Disconnect(disconnectQuiesce)
	}
}

// Close releases the client. The paho client holds no resources beyond the
// connection, so Close is a disconnect.
func (t *Transport) Close() {
	t.Disconnect()
}

// IsConnected returns current connection status
func (t *Transport) IsConnected() bool {
	return t.client.IsConnected()
}

// SetBufferOptions configures the disconnected publish buffer
func (t *Transport) SetBufferOptions(opts transport.BufferOptions) {
	t.buffer.Configure(opts)
}

// handleConnect fires on every established connection, including paho's
// own reconnects. The first connect is reported with reconnected=false.
func (t *Transport) handleConnect(_ pahomqtt.Client) {
	reconnected := t.everConnected.Swap(true)

	t.flushBuffer()

	if t.handlers.ConnectComplete != nil {
		t.handlers.ConnectComplete(reconnected, t.cfg.Broker)
	}
}

func (t *Transport) handleConnectionLost(_ pahomqtt.Client, err error) {
	t.log.Warn("mqtt connection lost", "broker", t.cfg.Broker, "error", err)

	if t.handlers.ConnectionLost != nil {
		t.handlers.ConnectionLost(err)
	}
}

func (t *Transport) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	if t.handlers.MessageArrived != nil {
		t.handlers.MessageArrived(msg.Topic(), msg.Payload())
	}
}

// flushBuffer replays publishes queued while the link was down.
func (t *Transport) flushBuffer() {
	entries := t.buffer.Drain()
	if len(entries) == 0 {
		return
	}

	t.log.Info("flushing disconnected buffer", "count", len(entries))
	for _, e := range entries {
		if err := t.Publish(e.Topic, e.Payload); err != nil {
			t.log.Error("failed to flush buffered publish",
				"topic", e.Topic,
				"error", err)
		}
	}
}
