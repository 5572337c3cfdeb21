// Package collector aggregates channel deliveries and reaping passes into run metrics and checks
// them against thresholds.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"eventflood/internal/core"
	"eventflood/internal/reaper"
)

// Collector aggregates deliveries and reaping passes from the producer.
type Collector struct {
	deliveries []core.Delivery
	reaps      []reaper.Report
	ch         chan core.Delivery
	done       chan struct{}
	mu         sync.Mutex
	dropped    atomic.Int64
	clock      core.Clock
	startTime  time.Time
	endTime    time.Time
}

// NewCollector creates a new Collector and starts its collection goroutine.
func NewCollector() *Collector {
	return NewCollectorWithClock(core.RealClock{})
}

// NewCollectorWithClock is NewCollector with an injectable clock for the run duration.
func NewCollectorWithClock(clock core.Clock) *Collector {
	c := &Collector{
		deliveries: make([]core.Delivery, 0),
		ch:         make(chan core.Delivery, 4096),
		done:       make(chan struct{}),
		clock:      clock,
		startTime:  clock.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for d := range c.ch {
		c.mu.Lock()
		c.deliveries = append(c.deliveries, d)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report hands a delivery to the collector without blocking the sender.
// Deliveries arriving while the buffer is full are counted as dropped. Thread-safe.
func (c *Collector) Report(d core.Delivery) {
	select {
	case c.ch <- d:
	default:
		c.dropped.Add(1)
	}
}

// ReapCompleted records a finished reaping pass. Thread-safe.
func (c *Collector) ReapCompleted(report reaper.Report) {
	c.mu.Lock()
	c.reaps = append(c.reaps, report)
	c.mu.Unlock()
}

// Close stops accepting deliveries and waits for the buffer to drain.
func (c *Collector) Close() {
	c.mu.Lock()
	c.endTime = c.clock.Now()
	c.mu.Unlock()
	close(c.ch)
	<-c.done
}

// Deliveries returns a copy of the collected deliveries.
func (c *Collector) Deliveries() []core.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Delivery, len(c.deliveries))
	copy(result, c.deliveries)
	return result
}

// DroppedDeliveries returns how many deliveries were discarded because the buffer was full.
func (c *Collector) DroppedDeliveries() int64 {
	return c.dropped.Load()
}

// Duration returns the run duration: start to Close, or start to now while still running.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	end := c.endTime
	c.mu.Unlock()
	if !end.IsZero() {
		return end.Sub(c.startTime)
	}
	return c.clock.Since(c.startTime)
}

// Reaps returns a copy of the recorded reaping passes.
func (c *Collector) Reaps() []reaper.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]reaper.Report(nil), c.reaps...)
}

// Compute returns metrics over everything collected so far.
func (c *Collector) Compute() *Metrics {
	m := Summarize(c.Deliveries(), c.Reaps(), c.Duration())
	m.Dropped = c.DroppedDeliveries()
	return m
}
