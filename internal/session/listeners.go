package session

// ConnectionListener receives global connection lifecycle events.
// At most one is registered per session.
type ConnectionListener interface {
	// OnConnected fires when a connection is established; reconnected is
	// true when the transport's retry policy restored a lost link.
	OnConnected(reconnected bool, serverURI string)

	// OnConnectionLost fires on an unsolicited disconnect.
	OnConnectionLost(err error)

	// OnConnectFailed fires when a connect attempt fails.
	OnConnectFailed(err error)

	// OnDisconnected fires after an explicit Disconnect call.
	OnDisconnected()
}

// SubscriptionListener receives global subscription events.
// At most one is registered per session.
type SubscriptionListener interface {
	OnSubscribed(topic string)
	OnSubscribeFailed(topic string, err error)
	OnUnsubscribed(topic string)
}

// MessageListener receives every inbound message and every delivery
// confirmation. At most one is registered per session.
type MessageListener interface {
	OnMessageArrived(topic string, payload []byte)
	OnDeliveryComplete(topic string, payload []byte)
}

// MessageHandler is a per-topic message callback. A topic slot holds at
// most one handler; registering against an occupied slot is a no-op.
type MessageHandler func(topic string, payload []byte)

// Callback carries the per-call hooks for an asynchronous operation.
// Either field may be nil. Both hooks run on a session-owned goroutine,
// never on the caller's.
type Callback struct {
	OnSuccess func()
	OnFailure func(err error)
}

func (c *Callback) success() {
	if c != nil && c.OnSuccess != nil {
		c.OnSuccess()
	}
}

func (c *Callback) failure(err error) {
	if c != nil && c.OnFailure != nil {
		c.OnFailure(err)
	}
}
