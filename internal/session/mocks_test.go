package session

import (
	"sync"

	"mqtt-session-manager/internal/transport"
)

// mockTransport records every call and lets tests inject failures. The
// Handlers passed to the factory are captured so tests can drive transport
// events.
type mockTransport struct {
	mu sync.Mutex

	connectCalls    int
	disconnectCalls int
	closeCalls      int
	subscribed      []string
	unsubscribed    []string
	published       []mockPublish
	bufferOpts      transport.BufferOptions

	connectErr     error
	subscribeErr   error
	unsubscribeErr error
	publishErr     error

	connectBarrier chan struct{}
	connected      bool
}

type mockPublish struct {
	topic   string
	payload []byte
}

func newMockTransport() *mockTransport {
	return &mockTransport{}
}

func (m *mockTransport) Connect() error {
	if m.connectBarrier != nil {
		<-m.connectBarrier
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockTransport) Subscribe(topic string, qos byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscribed = append(m.subscribed, topic)
	return nil
}

func (m *mockTransport) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribeErr != nil {
		return m.unsubscribeErr
	}
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockTransport) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{topic: topic, payload: payload})
	return nil
}

func (m *mockTransport) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCalls++
	m.connected = false
}

func (m *mockTransport) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.connected = false
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) SetBufferOptions(opts transport.BufferOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferOpts = opts
}

func (m *mockTransport) connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *mockTransport) disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectCalls
}

func (m *mockTransport) closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

func (m *mockTransport) subscribedTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.subscribed))
	copy(out, m.subscribed)
	return out
}

func (m *mockTransport) unsubscribedTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.unsubscribed))
	copy(out, m.unsubscribed)
	return out
}

func (m *mockTransport) publishedMessages() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// recordingConnectionListener collects connection events for assertion
type recordingConnectionListener struct {
	mu             sync.Mutex
	connected      []bool // reconnected flag per OnConnected call
	connectionLost []error
	connectFailed  []error
	disconnected   int
}

func (r *recordingConnectionListener) OnConnected(reconnected bool, serverURI string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, reconnected)
}

func (r *recordingConnectionListener) OnConnectionLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectionLost = append(r.connectionLost, err)
}

func (r *recordingConnectionListener) OnConnectFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectFailed = append(r.connectFailed, err)
}

func (r *recordingConnectionListener) OnDisconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recordingConnectionListener) connectedFlags() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.connected))
	copy(out, r.connected)
	return out
}

func (r *recordingConnectionListener) disconnects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnected
}

// recordingSubscriptionListener collects subscription events
type recordingSubscriptionListener struct {
	mu           sync.Mutex
	subscribed   []string
	failed       []string
	unsubscribed []string
}

func (r *recordingSubscriptionListener) OnSubscribed(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribed = append(r.subscribed, topic)
}

func (r *recordingSubscriptionListener) OnSubscribeFailed(topic string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, topic)
}

func (r *recordingSubscriptionListener) OnUnsubscribed(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribed = append(r.unsubscribed, topic)
}

func (r *recordingSubscriptionListener) subscribedTopics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.subscribed))
	copy(out, r.subscribed)
	return out
}

// recordingMessageListener collects dispatched messages
type recordingMessageListener struct {
	mu        sync.Mutex
	arrived   []mockPublish
	delivered []mockPublish
}

func (r *recordingMessageListener) OnMessageArrived(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrived = append(r.arrived, mockPublish{topic: topic, payload: payload})
}

func (r *recordingMessageListener) OnDeliveryComplete(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, mockPublish{topic: topic, payload: payload})
}

func (r *recordingMessageListener) arrivedMessages() []mockPublish {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mockPublish, len(r.arrived))
	copy(out, r.arrived)
	return out
}
