// Package nats implements the transport boundary on top of a NATS
// connection, for deployments where the message bus is NATS rather than an
// MQTT broker. Topics are mapped to subjects and back at the boundary.
package nats

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"mqtt-session-manager/config"
	"mqtt-session-manager/internal/logger"
	"mqtt-session-manager/internal/transport"
)

// Transport adapts a NATS connection to the transport.Transport interface.
type Transport struct {
	cfg      *config.NATSConfig
	log      *logger.Logger
	handlers transport.Handlers
	buffer   *transport.PublishBuffer

	mu   sync.Mutex
	conn *nats.Conn
	subs map[string]*nats.Subscription
}

// New creates a NATS-backed transport. No network I/O happens until
// Connect is called.
func New(cfg *config.NATSConfig, log *logger.Logger, h transport.Handlers) (*Transport, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("no NATS server URLs provided")
	}

	return &Transport{
		cfg:      cfg,
		log:      log,
		handlers: h,
		buffer:   transport.NewPublishBuffer(),
		subs:     make(map[string]*nats.Subscription),
	}, nil
}

// Connect establishes the NATS connection
func (t *Transport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && t.conn.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(t.cfg.ClientID),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if t.handlers.ConnectionLost != nil {
				t.handlers.ConnectionLost(err)
			}
		}),
	}

	if t.cfg.AutoReconnect {
		opts = append(opts,
			nats.ReconnectWait(time.Duration(t.cfg.MaxReconnectInterval)*time.Second),
			nats.MaxReconnects(-1),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				t.flushBuffer()
				if t.handlers.ConnectComplete != nil {
					t.handlers.ConnectComplete(true, nc.ConnectedUrl())
				}
			}),
		)
	} else {
		opts = append(opts, nats.NoReconnect())
	}

	if t.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(t.cfg.Username, t.cfg.Password))
	}

	if t.cfg.TLS.Enable {
		opts = append(opts, nats.ClientCert(t.cfg.TLS.CertFile, t.cfg.TLS.KeyFile))
		if t.cfg.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(t.cfg.TLS.CAFile))
		}
	}

	conn, err := nats.Connect(t.cfg.URLs[0], opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	t.conn = conn
	t.log.Info("connected to NATS server", "url", conn.ConnectedUrl())
	return nil
}

// Subscribe maps the topic to a subject and installs a NATS subscription.
// QoS carries no meaning on NATS and is ignored.
func (t *Transport) Subscribe(topic string, qos byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("not connected to NATS server")
	}

	if _, exists := t.subs[topic]; exists {
		return nil
	}

	subject := ToSubject(topic)
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		if t.handlers.MessageArrived != nil {
			t.handlers.MessageArrived(ToTopic(msg.Subject), msg.Data)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	t.subs[topic] = sub
	return nil
}

// Unsubscribe removes the NATS subscription for a topic
func (t *Transport) Unsubscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, exists := t.subs[topic]
	if !exists {
		return nil
	}
	delete(t.subs, topic)

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", topic, err)
	}
	return nil
}

// Publish sends a message, buffering it while the link is down.
func (t *Transport) Publish(topic string, payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if (conn == nil || !conn.IsConnected()) && t.buffer.Enabled() {
		queued, dropped := t.buffer.Add(topic, payload)
		if dropped && t.handlers.PublishDropped != nil {
			t.handlers.PublishDropped(topic)
		}
		if !queued {
			t.log.Warn("disconnected buffer full, publish dropped", "topic", topic)
			return fmt.Errorf("publish to %s dropped: %w", topic, transport.ErrBufferFull)
		}
		return nil
	}

	if conn == nil {
		return fmt.Errorf("not connected to NATS server")
	}

	if err := conn.Publish(ToSubject(topic), payload); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	if t.handlers.DeliveryComplete != nil {
		t.handlers.DeliveryComplete(topic, payload)
	}
	return nil
}

// Disconnect drains the connection, letting in-flight messages settle
func (t *Transport) Disconnect() {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		if err := conn.Drain(); err != nil {
			t.log.Error("failed to drain NATS connection", "error", err)
		}
	}
}

// Close releases the connection and subscription handles
func (t *Transport) Close() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.subs = make(map[string]*nats.Subscription)
	t.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		conn.Close()
	}
}

// IsConnected returns current connection status
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && t.conn.IsConnected()
}

// SetBufferOptions configures the disconnected publish buffer
func (t *Transport) SetBufferOptions(opts transport.BufferOptions) {
	t.buffer.Configure(opts)
}

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
