package metrics

import (
	"runtime"
	"sync"
	"time"
)

// MetricsCollector periodically samples runtime stats into the metrics service.
type MetricsCollector struct {
	metrics  *Metrics
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewMetricsCollector creates a collector that updates process metrics at
// the given interval.
func NewMetricsCollector(m *Metrics, interval time.Duration) *MetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsCollector{
		metrics:  m,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins periodic collection
func (c *MetricsCollector) Start() {
	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts collection; safe to call multiple times
func (c *MetricsCollector) Stop() {
	c.once.Do(func() {
		close(c.stop)
	})
	<-c.done
}

func (c *MetricsCollector) collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.metrics.SetProcessMetrics(runtime.NumGoroutine(), ms.HeapAlloc)
}
