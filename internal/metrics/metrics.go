package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes prometheus instrumentation for the session manager.
type Metrics struct {
	connectionStatus    prometheus.Gauge
	connectsTotal       *prometheus.CounterVec
	reconnectsTotal     prometheus.Counter
	messagesTotal       *prometheus.CounterVec
	subscribesTotal     *prometheus.CounterVec
	unsubscribesTotal   prometheus.Counter
	pendingOperations   prometheus.Gauge
	subscriptionsActive prometheus.Gauge
	bufferDroppedTotal  prometheus.Counter
	processGoroutines   prometheus.Gauge
	processMemoryBytes  prometheus.Gauge
}

// NewMetrics creates and registers all session metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_session_connection_status",
			Help: "Current connection status (1 = connected, 0 = disconnected)",
		}),
		connectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_session_connects_total",
			Help: "Total connect attempts by result",
		}, []string{"result"}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_session_reconnects_total",
			Help: "Total transport-driven reconnections",
		}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_session_messages_total",
			Help: "Total messages by status",
		}, []string{"status"}),
		subscribesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_session_subscribes_total",
			Help: "Total subscribe operations by status",
		}, []string{"status"}),
		unsubscribesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_session_unsubscribes_total",
			Help: "Total unsubscribe operations",
		}),
		pendingOperations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_session_pending_operations",
			Help: "Operations parked while a connect attempt is in flight",
		}),
		subscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_session_subscriptions_active",
			Help: "Topics currently registered as subscribed",
		}),
		bufferDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_session_buffer_dropped_total",
			Help: "Publishes dropped from the disconnected buffer",
		}),
		processGoroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_session_process_goroutines",
			Help: "Current number of goroutines",
		}),
		processMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_session_process_memory_bytes",
			Help: "Current allocated heap bytes",
		}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		m.connectionStatus,
		m.connectsTotal,
		m.reconnectsTotal,
		m.messagesTotal,
		m.subscribesTotal,
		m.unsubscribesTotal,
		m.pendingOperations,
		m.subscriptionsActive,
		m.bufferDroppedTotal,
		m.processGoroutines,
		m.processMemoryBytes,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// SetConnectionStatus records the current connection state
func (m *Metrics) SetConnectionStatus(connected bool) {
	if connected {
		m.connectionStatus.Set(1)
	} else {
		m.connectionStatus.Set(0)
	}
}

// IncConnectsTotal increments the connect attempt counter; result is
// "success" or "failure".
func (m *Metrics) IncConnectsTotal(result string) {
	m.connectsTotal.WithLabelValues(result).Inc()
}

// IncReconnects increments the transport reconnection counter
func (m *Metrics) IncReconnects() {
	m.reconnectsTotal.Inc()
}

// IncMessagesTotal increments the message counter; status is "received",
// "published" or "error".
func (m *Metrics) IncMessagesTotal(status string) {
	m.messagesTotal.WithLabelValues(status).Inc()
}

// IncSubscribesTotal increments the subscribe counter; status is "success",
// "failure" or "cached" (short-circuited without a network round-trip).
func (m *Metrics) IncSubscribesTotal(status string) {
	m.subscribesTotal.WithLabelValues(status).Inc()
}

// IncUnsubscribes increments the unsubscribe counter
func (m *Metrics) IncUnsubscribes() {
	m.unsubscribesTotal.Inc()
}

// SetPendingOperations records the pending continuation queue depth
func (m *Metrics) SetPendingOperations(n float64) {
	m.pendingOperations.Set(n)
}

// SetSubscriptionsActive records the registry size
func (m *Metrics) SetSubscriptionsActive(n float64) {
	m.subscriptionsActive.Set(n)
}

// IncBufferDropped increments the dropped-publish counter
func (m *Metrics) IncBufferDropped() {
	m.bufferDroppedTotal.Inc()
}

// SetProcessMetrics records runtime-level process stats
func (m *Metrics) SetProcessMetrics(goroutines int, heapBytes uint64) {
	m.processGoroutines.Set(float64(goroutines))
	m.processMemoryBytes.Set(float64(heapBytes))
}
