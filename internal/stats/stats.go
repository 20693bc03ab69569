package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// StatsCollector manages process-wide session statistics
type StatsCollector struct {
	StartTime         time.Time
	ConnectAttempts   uint64
	Reconnects        uint64
	MessagesReceived  uint64
	MessagesPublished uint64
	Errors            uint64
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		StartTime: time.Now(),
	}
}

// IncConnectAttempts records a connect attempt
func (s *StatsCollector) IncConnectAttempts() {
	atomic.AddUint64(&s.ConnectAttempts, 1)
}

// IncReconnects records a transport-driven reconnection
func (s *StatsCollector) IncReconnects() {
	atomic.AddUint64(&s.Reconnects, 1)
}

// IncMessagesReceived records an inbound message
func (s *StatsCollector) IncMessagesReceived() {
	atomic.AddUint64(&s.MessagesReceived, 1)
}

// IncMessagesPublished records a successful publish
func (s *StatsCollector) IncMessagesPublished() {
	atomic.AddUint64(&s.MessagesPublished, 1)
}

// IncErrors records a failed operation
func (s *StatsCollector) IncErrors() {
	atomic.AddUint64(&s.Errors, 1)
}

// GetStats returns current statistics
func (s *StatsCollector) GetStats() map[string]interface{} {
	uptime := time.Since(s.StartTime)
	return map[string]interface{}{
		"uptime":             uptime.String(),
		"connect_attempts":   atomic.LoadUint64(&s.ConnectAttempts),
		"reconnects":         atomic.LoadUint64(&s.Reconnects),
		"messages_received":  atomic.LoadUint64(&s.MessagesReceived),
		"messages_published": atomic.LoadUint64(&s.MessagesPublished),
		"errors":             atomic.LoadUint64(&s.Errors),
	}
}

// GetStatsJSON returns stats as JSON
func (s *StatsCollector) GetStatsJSON() ([]byte, error) {
	return json.Marshal(s.GetStats())
}

// CalculateRate calculates the inbound message rate per second
func (s *StatsCollector) CalculateRate() float64 {
	uptime := time.Since(s.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.MessagesReceived)) / uptime
}
