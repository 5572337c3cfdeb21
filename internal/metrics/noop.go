package metrics

import (
	"time"

	"eventflood/internal/reaper"
)

// NoopSink is used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) SendCompleted(channel string, success bool, duration time.Duration) {}
func (n *NoopSink) ReapCompleted(report reaper.Report)                                {}
func (n *NoopSink) PendingJobs(count int)                                             {}
func (n *NoopSink) ReapStalled()                                                      {}
