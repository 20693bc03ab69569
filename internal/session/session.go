// Package session owns a single logical broker connection. It mediates
// connect and reconnect, tracks subscriptions, fans inbound messages out to
// listeners, and routes outbound publishes, while the wire protocol stays
// behind the transport interface.
//
// All state transitions go through one mutex: the status enum is the only
// authority for whether an operation may proceed, and at most one transport
// connect attempt is in flight at a time. Operations issued while a connect
// is in flight are parked as continuations and resolved by that single
// attempt's outcome.
package session

import (
	"fmt"
	"sync"

	"mqtt-session-manager/config"
	"mqtt-session-manager/internal/logger"
	"mqtt-session-manager/internal/metrics"
	"mqtt-session-manager/internal/stats"
	"mqtt-session-manager/internal/transport"
)

// Session is an explicitly constructed, application-owned instance. It is
// safe for concurrent use; transport callbacks and application calls may
// arrive on different goroutines.
type Session struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.StatsCollector
	factory transport.Factory
	router  *router

	mu           sync.Mutex
	status       Status
	transport    transport.Transport
	registry     *registry
	pending      []pendingOp
	epoch        uint64
	connListener ConnectionListener
	subListener  SubscriptionListener
}

// Option configures a Session at construction time
type Option func(*Session)

// WithTransportFactory replaces the default transport construction,
// primarily for tests.
func WithTransportFactory(f transport.Factory) Option {
	return func(s *Session) {
		s.factory = f
	}
}

// New creates a session in the Uninitialized state. metricsService may be
// nil when metrics are disabled.
func New(cfg *config.Config, log *logger.Logger, metricsService *metrics.Metrics, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		log:      log,
		metrics:  metricsService,
		stats:    stats.NewStatsCollector(),
		router:   newRouter(log),
		status:   StatusUninitialized,
		registry: newRegistry(),
	}
	s.factory = defaultFactory(cfg, log)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init constructs the transport handle and moves the session to
// Disconnected. No network I/O happens here. Init is valid once per
// lifecycle; after Close it may be called again.
func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusUninitialized || s.transport != nil {
		return ErrAlreadyInitialized
	}

	e := s.epoch
	h := transport.Handlers{
		ConnectComplete: func(reconnected bool, serverURI string) {
			s.onTransportConnect(e, reconnected, serverURI)
		},
		ConnectionLost: func(err error) {
			s.onTransportConnectionLost(e, err)
		},
		MessageArrived: func(topic string, payload []byte) {
			s.onTransportMessage(e, topic, payload)
		},
		DeliveryComplete: func(topic string, payload []byte) {
			s.onTransportDelivery(e, topic, payload)
		},
		PublishDropped: func(topic string) {
			s.safeMetricsUpdate(func() {
				s.metrics.IncBufferDropped()
			})
		},
	}

	t, err := s.factory(h)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	s.transport = t
	s.status = StatusDisconnected
	s.log.Info("session initialized", "server", s.serverURI())
	return nil
}

// Connect asynchronously establishes the connection. The outcome is
// reported through cb (which may be nil) and the global connection
// listener. A connect issued while another is in flight attaches to that
// attempt instead of dialing again.
func (s *Session) Connect(cb *Callback) {
	s.mu.Lock()
	switch s.status {
	case StatusUninitialized:
		s.mu.Unlock()
		s.log.Warn("connect ignored: session not initialized")
		go cb.failure(ErrNotInitialized)
	case StatusConnected:
		s.mu.Unlock()
		go cb.success()
	case StatusConnecting:
		s.enqueueLocked(pendingOp{kind: "connect", run: cb.success, fail: cb.failure})
		s.mu.Unlock()
	case StatusDisconnected:
		s.enqueueLocked(pendingOp{kind: "connect", run: cb.success, fail: cb.failure})
		s.startConnectLocked(false)
		s.mu.Unlock()
	}
}

// startConnectLocked begins the single in-flight connect attempt.
// Caller holds s.mu with status Disconnected.
func (s *Session) startConnectLocked(forceDisconnect bool) {
	s.status = StatusConnecting
	t := s.transport
	e := s.epoch
	s.stats.IncConnectAttempts()
	go s.runConnect(t, e, forceDisconnect)
}

func (s *Session) runConnect(t transport.Transport, e uint64, forceDisconnect bool) {
	if forceDisconnect {
		// Clear possibly stale transport state before dialing
		t.Disconnect()
	}

	err := t.Connect()

	s.mu.Lock()
	if s.epoch != e {
		// Closed while dialing; drop the orphaned link
		s.mu.Unlock()
		if err == nil {
			t.Disconnect()
		}
		return
	}
	if s.status != StatusConnecting {
		// An explicit Disconnect raced the attempt; drop the link
		s.mu.Unlock()
		if err == nil {
			t.Disconnect()
		}
		return
	}

	if err != nil {
		s.status = StatusDisconnected
		ops := s.takePendingLocked()
		l := s.connListener
		s.mu.Unlock()

		werr := fmt.Errorf("%w: %w", ErrConnectFailed, err)
		s.log.Error("connect failed", "server", s.serverURI(), "error", err)
		s.stats.IncErrors()
		s.safeMetricsUpdate(func() {
			s.metrics.IncConnectsTotal("failure")
		})
		if l != nil {
			safeInvoke(s.log, "connection listener", func() {
				l.OnConnectFailed(werr)
			})
		}
		s.resolvePending(ops, werr)
		return
	}

	s.status = StatusConnected
	t.SetBufferOptions(s.bufferOptions())
	ops := s.takePendingLocked()
	l := s.connListener
	s.mu.Unlock()

	s.log.Info("session connected", "server", s.serverURI())
	s.safeMetricsUpdate(func() {
		s.metrics.IncConnectsTotal("success")
		s.metrics.SetConnectionStatus(true)
	})
	if l != nil {
		safeInvoke(s.log, "connection listener", func() {
			l.OnConnected(false, s.serverURI())
		})
	}
	s.resolvePending(ops, nil)
}

// Subscribe asynchronously subscribes to a topic. When the topic is
// already registered and the session is persistent (clean-session false)
// the call reports success immediately without a network round-trip. When
// disconnected, the session forces a transport disconnect to clear stale
// state, connects, and subscribes on success.
func (s *Session) Subscribe(topic string, qos byte, cb *Callback) {
	s.mu.Lock()
	if s.status == StatusUninitialized {
		s.mu.Unlock()
		s.log.Warn("subscribe ignored: session not initialized", "topic", topic)
		go cb.failure(ErrNotInitialized)
		return
	}

	if s.registry.contains(topic) && !s.cfg.MQTT.CleanSession {
		subL := s.subListener
		s.mu.Unlock()

		s.log.Debug("subscribe short-circuited, topic already registered", "topic", topic)
		s.safeMetricsUpdate(func() {
			s.metrics.IncSubscribesTotal("cached")
		})
		go func() {
			cb.success()
			if subL != nil {
				safeInvoke(s.log, "subscription listener", func() {
					subL.OnSubscribed(topic)
				})
			}
		}()
		return
	}

	t := s.transport
	e := s.epoch
	op := pendingOp{
		kind: "subscribe",
		run: func() {
			s.runSubscribe(t, e, topic, qos, cb)
		},
		fail: func(err error) {
			s.failSubscribe(topic, cb, err)
		},
	}

	switch s.status {
	case StatusConnected:
		s.mu.Unlock()
		go s.runSubscribe(t, e, topic, qos, cb)
	case StatusConnecting:
		s.enqueueLocked(op)
		s.mu.Unlock()
	case StatusDisconnected:
		s.enqueueLocked(op)
		s.startConnectLocked(true)
		s.mu.Unlock()
	}
}

func (s *Session) runSubscribe(t transport.Transport, e uint64, topic string, qos byte, cb *Callback) {
	err := t.Subscribe(topic, qos)

	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Defensive: the topic must not linger after a failure
		s.registry.remove(topic)
		s.mu.Unlock()
		s.failSubscribe(topic, cb, fmt.Errorf("%w: topic %q: %w", ErrSubscribeFailed, topic, err))
		return
	}

	s.registry.add(topic)
	count := s.registry.len()
	subL := s.subListener
	s.mu.Unlock()

	s.log.Info("subscribed", "topic", topic, "qos", qos)
	s.safeMetricsUpdate(func() {
		s.metrics.IncSubscribesTotal("success")
		s.metrics.SetSubscriptionsActive(float64(count))
	})
	cb.success()
	if subL != nil {
		safeInvoke(s.log, "subscription listener", func() {
			subL.OnSubscribed(topic)
		})
	}
}

func (s *Session) failSubscribe(topic string, cb *Callback, err error) {
	s.mu.Lock()
	subL := s.subListener
	s.mu.Unlock()

	s.log.Error("subscribe failed", "topic", topic, "error", err)
	s.stats.IncErrors()
	s.safeMetricsUpdate(func() {
		s.metrics.IncSubscribesTotal("failure")
	})
	cb.failure(err)
	if subL != nil {
		safeInvoke(s.log, "subscription listener", func() {
			subL.OnSubscribeFailed(topic, err)
		})
	}
}

// Publish asynchronously publishes a message. When disconnected, the
// publish attaches to the single in-flight connect (starting one if
// needed) and runs on its success; once connected, transient link loss is
// covered by the transport's disconnected buffer.
func (s *Session) Publish(topic string, payload []byte) {
	s.mu.Lock()
	if s.status == StatusUninitialized {
		s.mu.Unlock()
		s.log.Warn("publish ignored: session not initialized", "topic", topic)
		return
	}

	t := s.transport
	op := pendingOp{
		kind: "publish",
		run: func() {
			s.runPublish(t, topic, payload)
		},
		fail: func(err error) {
			s.log.Error("publish dropped, connect failed", "topic", topic, "error", err)
			s.stats.IncErrors()
		},
	}

	switch s.status {
	case StatusConnected:
		s.mu.Unlock()
		go s.runPublish(t, topic, payload)
	case StatusConnecting:
		s.enqueueLocked(op)
		s.mu.Unlock()
	case StatusDisconnected:
		s.enqueueLocked(op)
		s.startConnectLocked(false)
		s.mu.Unlock()
	}
}

func (s *Session) runPublish(t transport.Transport, topic string, payload []byte) {
	if err := t.Publish(topic, payload); err != nil {
		s.log.Error("publish failed", "topic", topic,
			"error", fmt.Errorf("%w: %w", ErrPublishFailed, err))
		s.stats.IncErrors()
		s.safeMetricsUpdate(func() {
			s.metrics.IncMessagesTotal("error")
		})
		return
	}

	s.stats.IncMessagesPublished()
	s.safeMetricsUpdate(func() {
		s.metrics.IncMessagesTotal("published")
	})
}

// Unsubscribe removes the topic from the registry before the network call
// completes. A failed transport unsubscribe is logged and the registry is
// not restored; unsubscribe is best-effort.
func (s *Session) Unsubscribe(topic string) {
	s.mu.Lock()
	if s.status == StatusUninitialized {
		s.mu.Unlock()
		s.log.Warn("unsubscribe ignored: session not initialized", "topic", topic)
		return
	}

	s.registry.remove(topic)
	count := s.registry.len()
	t := s.transport
	connected := s.status == StatusConnected
	s.mu.Unlock()

	s.safeMetricsUpdate(func() {
		s.metrics.SetSubscriptionsActive(float64(count))
	})

	if !connected {
		s.log.Debug("unsubscribe while not connected, registry updated only", "topic", topic)
		return
	}

	go s.runUnsubscribe(t, topic)
}

func (s *Session) runUnsubscribe(t transport.Transport, topic string) {
	if err := t.Unsubscribe(topic); err != nil {
		s.log.Error("unsubscribe failed", "topic", topic,
			"error", fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err))
		s.stats.IncErrors()
		return
	}

	s.safeMetricsUpdate(func() {
		s.metrics.IncUnsubscribes()
	})

	s.mu.Lock()
	subL := s.subListener
	s.mu.Unlock()
	if subL != nil {
		safeInvoke(s.log, "subscription listener", func() {
			subL.OnUnsubscribed(topic)
		})
	}
}

// Disconnect gracefully disconnects. The connection listener is notified
// regardless of the underlying transport outcome, and the session does not
// reconnect on its own afterwards. A connect attempt in flight is failed.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.status == StatusUninitialized {
		s.mu.Unlock()
		s.log.Warn("disconnect ignored: session not initialized")
		return
	}

	var ops []pendingOp
	if s.status == StatusConnecting {
		ops = s.takePendingLocked()
	}
	t := s.transport
	s.status = StatusDisconnected
	l := s.connListener
	s.mu.Unlock()

	t.Disconnect()

	s.log.Info("session disconnected")
	s.safeMetricsUpdate(func() {
		s.metrics.SetConnectionStatus(false)
	})
	if len(ops) > 0 {
		s.resolvePending(ops, fmt.Errorf("%w: disconnected before connect completed", ErrConnectFailed))
	}
	if l != nil {
		safeInvoke(s.log, "connection listener", func() {
			l.OnDisconnected()
		})
	}
}

// Close tears the session down: disconnect if connected, release the
// transport, clear the registry and every listener registration. Close is
// idempotent; after it returns only Init is valid.
func (s *Session) Close() {
	s.mu.Lock()
	if s.status == StatusUninitialized && s.transport == nil {
		s.mu.Unlock()
		s.log.Debug("close ignored: session already closed")
		return
	}

	t := s.transport
	connected := s.status == StatusConnected
	s.transport = nil
	s.status = StatusUninitialized
	s.epoch++
	ops := s.takePendingLocked()
	s.registry.clear()
	s.connListener = nil
	s.subListener = nil
	s.mu.Unlock()

	s.router.clear()
	s.resolvePending(ops, ErrClosed)

	if t != nil {
		if connected {
			t.Disconnect()
		}
		t.Close()
	}

	s.safeMetricsUpdate(func() {
		s.metrics.SetConnectionStatus(false)
		s.metrics.SetSubscriptionsActive(0)
	})
	s.log.Info("session closed")
}

// IsConnected reports the session's own status; the transport is not
// probed.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusConnected
}

// Status returns the current connection status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubscribedTopics returns the registry contents in sorted order
func (s *Session) SubscribedTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.snapshot()
}

// Stats returns the session's statistics collector
func (s *Session) Stats() *stats.StatsCollector {
	return s.stats
}

// SetConnectionListener registers the global connection listener,
// replacing any previous one.
func (s *Session) SetConnectionListener(l ConnectionListener) {
	s.mu.Lock()
	s.connListener = l
	s.mu.Unlock()
}

// RemoveConnectionListener clears the global connection listener
func (s *Session) RemoveConnectionListener() {
	s.SetConnectionListener(nil)
}

// SetSubscriptionListener registers the global subscription listener,
// replacing any previous one.
func (s *Session) SetSubscriptionListener(l SubscriptionListener) {
	s.mu.Lock()
	s.subListener = l
	s.mu.Unlock()
}

// RemoveSubscriptionListener clears the global subscription listener
func (s *Session) RemoveSubscriptionListener() {
	s.SetSubscriptionListener(nil)
}

// SetMessageListener registers the global message listener, replacing any
// previous one.
func (s *Session) SetMessageListener(l MessageListener) {
	s.router.setMessageListener(l)
}

// RemoveMessageListener clears the global message listener
func (s *Session) RemoveMessageListener() {
	s.router.removeMessageListener()
}

// AddTopicListener registers a per-topic handler. Returns false when the
// topic already has one; remove it first to replace.
func (s *Session) AddTopicListener(topic string, h MessageHandler) bool {
	return s.router.addTopicHandler(topic, h)
}

// RemoveTopicListener clears the handler for a topic
func (s *Session) RemoveTopicListener(topic string) {
	s.router.removeTopicHandler(topic)
}

// Transport event handlers. Each is bound to the epoch current at Init
// time; events from a transport released by Close are dropped.

func (s *Session) onTransportConnect(e uint64, reconnected bool, serverURI string) {
	if !reconnected {
		// Initial connects resolve through the explicit connect path
		return
	}

	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	s.status = StatusConnected
	l := s.connListener
	s.mu.Unlock()

	s.log.Info("transport reconnected", "server", serverURI)
	s.stats.IncReconnects()
	s.safeMetricsUpdate(func() {
		s.metrics.IncReconnects()
		s.metrics.SetConnectionStatus(true)
	})
	if l != nil {
		safeInvoke(s.log, "connection listener", func() {
			l.OnConnected(true, serverURI)
		})
	}
}

func (s *Session) onTransportConnectionLost(e uint64, err error) {
	s.mu.Lock()
	if s.epoch != e {
		s.mu.Unlock()
		return
	}
	if s.status == StatusConnected {
		s.status = StatusDisconnected
	}
	l := s.connListener
	s.mu.Unlock()

	s.log.Warn("connection lost", "error", err)
	s.safeMetricsUpdate(func() {
		s.metrics.SetConnectionStatus(false)
	})
	if l != nil {
		safeInvoke(s.log, "connection listener", func() {
			l.OnConnectionLost(err)
		})
	}
}

func (s *Session) onTransportMessage(e uint64, topic string, payload []byte) {
	s.mu.Lock()
	live := s.epoch == e
	s.mu.Unlock()
	if !live {
		return
	}

	s.stats.IncMessagesReceived()
	s.safeMetricsUpdate(func() {
		s.metrics.IncMessagesTotal("received")
	})
	s.router.dispatchMessage(topic, payload)
}

func (s *Session) onTransportDelivery(e uint64, topic string, payload []byte) {
	s.mu.Lock()
	live := s.epoch == e
	s.mu.Unlock()
	if !live {
		return
	}

	s.router.dispatchDelivery(topic, payload)
}

func (s *Session) serverURI() string {
	if s.cfg.Transport == config.TransportNATS && s.cfg.NATS != nil {
		return s.cfg.NATS.URLs[0]
	}
	return s.cfg.MQTT.Broker
}

func (s *Session) bufferOptions() transport.BufferOptions {
	return transport.BufferOptions{
		Enabled:    s.cfg.Buffer.IsEnabled(),
		Size:       s.cfg.Buffer.Size,
		Persist:    s.cfg.Buffer.Persist,
		DropOldest: s.cfg.Buffer.DropOldest,
	}
}

// safeMetricsUpdate runs fn only when metrics are enabled
func (s *Session) safeMetricsUpdate(fn func()) {
	if s.metrics != nil {
		fn()
	}
}
