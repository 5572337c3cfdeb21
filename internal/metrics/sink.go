// Package metrics exports run counters to Prometheus.
package metrics

import (
	"time"

	"eventflood/internal/reaper"
)

// Sink records run metrics. All methods are fire-and-forget: implementations must not block or
// return errors.
type Sink interface {
	SendCompleted(channel string, success bool, duration time.Duration)
	ReapCompleted(report reaper.Report)
	PendingJobs(n int)
	ReapStalled()
}

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)
