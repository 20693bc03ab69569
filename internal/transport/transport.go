// Package transport defines the narrow interface the session uses to talk
// to an underlying protocol client. Implementations live in the mqtt and
// nats subpackages; the session never imports a protocol library directly.
package transport

import "errors"

// ErrBufferFull reports a publish rejected by the disconnected buffer's
// overflow policy.
var ErrBufferFull = errors.New("disconnected buffer full")

// Handlers carries the callbacks a transport delivers events through.
// They are invoked on goroutines owned by the transport library; the
// session is responsible for its own synchronization.
type Handlers struct {
	// ConnectComplete fires when a connection is established. reconnected
	// is true when the transport's own retry policy re-established a lost
	// connection rather than completing an explicit Connect call.
	ConnectComplete func(reconnected bool, serverURI string)

	// ConnectionLost fires on an unsolicited disconnect.
	ConnectionLost func(err error)

	// MessageArrived fires for each inbound message.
	MessageArrived func(topic string, payload []byte)

	// DeliveryComplete fires once an outbound publish has been fully
	// handed to the broker.
	DeliveryComplete func(topic string, payload []byte)

	// PublishDropped fires when the disconnected-publish buffer discards
	// a message under its overflow policy.
	PublishDropped func(topic string)
}

// BufferOptions configures the transport's queue for publishes issued
// while the link is down. With DropOldest false the buffer keeps its
// oldest entries and drops incoming messages once full.
type BufferOptions struct {
	Enabled    bool
	Size       int
	Persist    bool
	DropOldest bool
}

// Transport is the protocol-client boundary. Connect, Subscribe,
// Unsubscribe and Publish block until the operation is acknowledged or
// times out; the session invokes them from its own goroutines.
type Transport interface {
	Connect() error
	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) error
	Disconnect()
	Close()
	IsConnected() bool
	SetBufferOptions(opts BufferOptions)
}

// Factory builds a transport wired to the given handlers. The session
// calls it once at init time; tests substitute their own.
type Factory func(h Handlers) (Transport, error)
