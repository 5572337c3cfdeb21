package collector

import (
	"sort"
	"time"

	"eventflood/internal/core"
)

// Metrics is the outcome of a run as seen by the producer.
type Metrics struct {
	Elapsed  time.Duration                  `json:"elapsed"`
	Events   EventOutcomes                  `json:"events"`
	Channels map[core.Channel]*ChannelStats `json:"channels"`
	Reaps    ReapStats                      `json:"reaps"`
	// Dropped counts deliveries the collector buffer could not take.
	Dropped int64 `json:"dropped"`
}

// EventOutcomes classifies each event by how many of its two deliveries landed.
type EventOutcomes struct {
	Total    int `json:"total"`
	Complete int `json:"complete"`
	// Partial events reached one channel only, so exactly one downstream job saw them.
	Partial int `json:"partial"`
	Lost    int `json:"lost"`
}

// PartialRate is the share of events, in percent, that reached exactly one channel.
func (e EventOutcomes) PartialRate() float64 { return percent(e.Partial, e.Total) }

// LostRate is the share of events, in percent, that reached neither channel.
func (e EventOutcomes) LostRate() float64 { return percent(e.Lost, e.Total) }

// PerSecond is the event throughput over elapsed.
func (e EventOutcomes) PerSecond(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(e.Total) / elapsed.Seconds()
}

// ChannelStats covers one delivery path. Latency is taken over delivered messages only.
type ChannelStats struct {
	Attempts  int          `json:"attempts"`
	Delivered int          `json:"delivered"`
	Failed    int          `json:"failed"`
	Latency   LatencyStats `json:"latency"`
}

// FailureRate is the share of attempts on this channel, in percent, that failed.
func (c *ChannelStats) FailureRate() float64 { return percent(c.Failed, c.Attempts) }

// LatencyStats describes how long a channel took to accept a message.
type LatencyStats struct {
	Min  time.Duration `json:"min"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P90  time.Duration `json:"p90"`
	P99  time.Duration `json:"p99"`
	Max  time.Duration `json:"max"`
}

// ReapStats folds the reports of every completed reaping pass.
type ReapStats struct {
	Passes       int `json:"passes"`
	Deleted      int `json:"deleted"`
	DeleteFailed int `json:"deleteFailed"`
	// MaxPending is the largest pending set any pass left behind.
	MaxPending int `json:"maxPending"`
	Retries    int `json:"retries"`
	// LongestWait is the longest time senders were held off by one pass.
	LongestWait time.Duration `json:"longestWait"`
	TotalWait   time.Duration `json:"totalWait"`
}

// ComputePercentile returns the nearest-rank value at p (0..1) of an ascending slice.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	switch n := len(sorted); {
	case n == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	default:
		return sorted[int(float64(n-1)*p)]
	}
}

// latencyOf sorts durations in place.
func latencyOf(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return LatencyStats{
		Min:  durations[0],
		Mean: sum / time.Duration(len(durations)),
		P50:  ComputePercentile(durations, 0.50),
		P90:  ComputePercentile(durations, 0.90),
		P99:  ComputePercentile(durations, 0.99),
		Max:  durations[len(durations)-1],
	}
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
