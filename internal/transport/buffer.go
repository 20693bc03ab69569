package transport

import (
	"sync"
	"sync/atomic"
)

// BufferedMessage is a publish held while the link is down.
type BufferedMessage struct {
	Topic   string
	Payload []byte
}

// PublishBuffer is a bounded non-persistent queue for publishes issued
// while disconnected. It starts disabled; the session configures it once
// the first connect succeeds. Safe for concurrent use.
type PublishBuffer struct {
	mu      sync.Mutex
	opts    BufferOptions
	entries []BufferedMessage
	dropped uint64
}

// NewPublishBuffer returns a buffer that rejects entries until Configure
// is called with Enabled set.
func NewPublishBuffer() *PublishBuffer {
	return &PublishBuffer{}
}

// Configure replaces the buffer policy. Shrinking below the current depth
// drops entries according to the drop policy.
func (b *PublishBuffer) Configure(opts BufferOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opts = opts
	if !opts.Enabled {
		b.entries = nil
		return
	}

	for len(b.entries) > opts.Size {
		if opts.DropOldest {
			b.entries = b.entries[1:]
		} else {
			b.entries = b.entries[:len(b.entries)-1]
		}
		atomic.AddUint64(&b.dropped, 1)
	}
}

// Add queues a publish. queued is false when the buffer is disabled or
// the incoming message was rejected; dropped is true whenever the overflow
// policy discarded a message, incoming or oldest.
func (b *PublishBuffer) Add(topic string, payload []byte) (queued, dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opts.Enabled {
		return false, false
	}

	if len(b.entries) >= b.opts.Size {
		atomic.AddUint64(&b.dropped, 1)
		if !b.opts.DropOldest {
			// Keep the oldest entries, drop the incoming message
			return false, true
		}
		b.entries = b.entries[1:]
		dropped = true
	}

	b.entries = append(b.entries, BufferedMessage{Topic: topic, Payload: payload})
	return true, dropped
}

// Drain removes and returns all queued entries in arrival order.
func (b *PublishBuffer) Drain() []BufferedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries
	b.entries = nil
	return entries
}

// Len returns the current queue depth
func (b *PublishBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Dropped returns the total number of messages dropped by the overflow policy
func (b *PublishBuffer) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// Enabled reports whether the buffer accepts entries
func (b *PublishBuffer) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts.Enabled
}
