package session

import (
	"sync"

	"mqtt-session-manager/internal/logger"
)

// router fans inbound messages out to the global message listener and the
// per-topic handler. It has its own lock so dispatch never contends with
// session state transitions.
type router struct {
	log *logger.Logger

	mu       sync.RWMutex
	message  MessageListener
	perTopic map[string]MessageHandler
}

func newRouter(log *logger.Logger) *router {
	return &router{
		log:      log,
		perTopic: make(map[string]MessageHandler),
	}
}

func (r *router) setMessageListener(l MessageListener) {
	r.mu.Lock()
	r.message = l
	r.mu.Unlock()
}

func (r *router) removeMessageListener() {
	r.setMessageListener(nil)
}

// addTopicHandler registers a per-topic handler. Returns false when the
// slot is already occupied; callers must remove before replacing.
func (r *router) addTopicHandler(topic string, h MessageHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.perTopic[topic]; exists {
		return false
	}
	r.perTopic[topic] = h
	return true
}

func (r *router) removeTopicHandler(topic string) {
	r.mu.Lock()
	delete(r.perTopic, topic)
	r.mu.Unlock()
}

func (r *router) topicHandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.perTopic)
}

// dispatchMessage invokes the global listener, then the per-topic handler.
// Both may fire for the same message. Listener references are copied
// before invocation so a listener may re-enter the session.
func (r *router) dispatchMessage(topic string, payload []byte) {
	r.mu.RLock()
	global := r.message
	handler := r.perTopic[topic]
	r.mu.RUnlock()

	if global != nil {
		safeInvoke(r.log, "message listener", func() {
			global.OnMessageArrived(topic, payload)
		})
	}
	if handler != nil {
		safeInvoke(r.log, "topic handler", func() {
			handler(topic, payload)
		})
	}
}

// dispatchDelivery routes a delivery confirmation to the global message
// listener only.
func (r *router) dispatchDelivery(topic string, payload []byte) {
	r.mu.RLock()
	global := r.message
	r.mu.RUnlock()

	if global != nil {
		safeInvoke(r.log, "message listener", func() {
			global.OnDeliveryComplete(topic, payload)
		})
	}
}

func (r *router) clear() {
	r.mu.Lock()
	r.message = nil
	r.perTopic = make(map[string]MessageHandler)
	r.mu.Unlock()
}

// safeInvoke runs a listener callback behind a fault boundary. A panicking
// listener is logged and must not stop dispatch to the remaining listeners
// or corrupt session state.
func safeInvoke(log *logger.Logger, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("listener panic recovered", "listener", name, "panic", rec)
		}
	}()
	fn()
}
