package collector

import (
	"time"

	"eventflood/internal/core"
	"eventflood/internal/reaper"
)

// Summarize folds deliveries and reaping passes into Metrics. Deliveries are grouped into events by
// their corpus index; the inputs are not modified.
func Summarize(deliveries []core.Delivery, reaps []reaper.Report, elapsed time.Duration) *Metrics {
	m := &Metrics{
		Elapsed:  elapsed,
		Channels: make(map[core.Channel]*ChannelStats, 2),
	}

	landed := make(map[int]int)
	latencies := make(map[core.Channel][]time.Duration, 2)
	for _, d := range deliveries {
		cs := m.Channels[d.Channel]
		if cs == nil {
			cs = &ChannelStats{}
			m.Channels[d.Channel] = cs
		}
		cs.Attempts++
		if _, seen := landed[d.Index]; !seen {
			landed[d.Index] = 0
		}
		if d.Success {
			cs.Delivered++
			landed[d.Index]++
			latencies[d.Channel] = append(latencies[d.Channel], d.Duration)
		} else {
			cs.Failed++
		}
	}
	for ch, ds := range latencies {
		m.Channels[ch].Latency = latencyOf(ds)
	}

	for _, n := range landed {
		m.Events.Total++
		switch {
		case n == 0:
			m.Events.Lost++
		case n < len(m.Channels):
			m.Events.Partial++
		default:
			m.Events.Complete++
		}
	}

	for _, r := range reaps {
		m.Reaps.Passes++
		m.Reaps.Deleted += r.Deleted
		m.Reaps.DeleteFailed += r.DeleteFailed
		m.Reaps.Retries += r.Retries
		m.Reaps.TotalWait += r.Duration
		m.Reaps.MaxPending = max(m.Reaps.MaxPending, r.Pending)
		m.Reaps.LongestWait = max(m.Reaps.LongestWait, r.Duration)
	}
	return m
}
