package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"eventflood/internal/core"
)

// FormatText writes metrics in human-readable format.
func FormatText(w io.Writer, m *Metrics, thresholds *ThresholdResults) {
	if m.Events.Total == 0 {
		fmt.Fprintln(w, "No events sent")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "eventflood - Run Results")
	fmt.Fprintln(w, "========================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:    %v\n", m.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Events:      %s (%.1f/s)\n", formatNumber(m.Events.Total), m.Events.PerSecond(m.Elapsed))
	fmt.Fprintf(w, "  complete:  %s\n", formatNumber(m.Events.Complete))
	fmt.Fprintf(w, "  partial:   %s (%.2f%%)\n", formatNumber(m.Events.Partial), m.Events.PartialRate())
	fmt.Fprintf(w, "  lost:      %s (%.2f%%)\n", formatNumber(m.Events.Lost), m.Events.LostRate())
	if m.Dropped > 0 {
		fmt.Fprintf(w, "  WARNING: %s deliveries were not recorded\n", formatNumber(int(m.Dropped)))
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Channels:")
	for _, ch := range sortedChannels(m) {
		cs := m.Channels[ch]
		fmt.Fprintf(w, "  %-10s %s sent  %s failed (%.2f%%)  p50=%s  p99=%s  max=%s\n",
			ch, formatNumber(cs.Delivered), formatNumber(cs.Failed), cs.FailureRate(),
			FormatDuration(cs.Latency.P50), FormatDuration(cs.Latency.P99), FormatDuration(cs.Latency.Max))
	}

	if m.Reaps.Passes > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Reaping:")
		fmt.Fprintf(w, "  passes:    %d (%s jobs deleted, %d failed)\n",
			m.Reaps.Passes, formatNumber(m.Reaps.Deleted), m.Reaps.DeleteFailed)
		fmt.Fprintf(w, "  held off:  %s total, %s longest, %d rechecks\n",
			FormatDuration(m.Reaps.TotalWait), FormatDuration(m.Reaps.LongestWait), m.Reaps.Retries)
		fmt.Fprintf(w, "  pending:   at most %d after a pass\n", m.Reaps.MaxPending)
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s <= %s (actual: %s)\n", symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

// FormatJSON writes metrics in JSON format. Durations are rendered as strings.
func FormatJSON(w io.Writer, m *Metrics, thresholds *ThresholdResults) {
	output := jsonReport{
		Elapsed:      m.Elapsed.Round(time.Millisecond).String(),
		EventsPerSec: m.Events.PerSecond(m.Elapsed),
		Events:       m.Events,
		Channels:     make(map[string]jsonChannel, len(m.Channels)),
		Reaps: jsonReaps{
			Passes:       m.Reaps.Passes,
			Deleted:      m.Reaps.Deleted,
			DeleteFailed: m.Reaps.DeleteFailed,
			MaxPending:   m.Reaps.MaxPending,
			Retries:      m.Reaps.Retries,
			LongestWait:  FormatDuration(m.Reaps.LongestWait),
			TotalWait:    FormatDuration(m.Reaps.TotalWait),
		},
		Dropped:    m.Dropped,
		Thresholds: thresholds,
	}
	for ch, cs := range m.Channels {
		output.Channels[string(ch)] = jsonChannel{
			Attempts:    cs.Attempts,
			Delivered:   cs.Delivered,
			Failed:      cs.Failed,
			FailureRate: cs.FailureRate(),
			Latency: map[string]string{
				"min":  FormatDuration(cs.Latency.Min),
				"mean": FormatDuration(cs.Latency.Mean),
				"p50":  FormatDuration(cs.Latency.P50),
				"p90":  FormatDuration(cs.Latency.P90),
				"p99":  FormatDuration(cs.Latency.P99),
				"max":  FormatDuration(cs.Latency.Max),
			},
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonReport struct {
	Elapsed      string                 `json:"elapsed"`
	EventsPerSec float64                `json:"eventsPerSec"`
	Events       EventOutcomes          `json:"events"`
	Channels     map[string]jsonChannel `json:"channels"`
	Reaps        jsonReaps              `json:"reaps"`
	Dropped      int64                  `json:"dropped"`
	Thresholds   *ThresholdResults      `json:"thresholds,omitempty"`
}

type jsonChannel struct {
	Attempts    int               `json:"attempts"`
	Delivered   int               `json:"delivered"`
	Failed      int               `json:"failed"`
	FailureRate float64           `json:"failureRate"`
	Latency     map[string]string `json:"latency"`
}

type jsonReaps struct {
	Passes       int    `json:"passes"`
	Deleted      int    `json:"deleted"`
	DeleteFailed int    `json:"deleteFailed"`
	MaxPending   int    `json:"maxPending"`
	Retries      int    `json:"retries"`
	LongestWait  string `json:"longestWait"`
	TotalWait    string `json:"totalWait"`
}

func sortedChannels(m *Metrics) []core.Channel {
	out := make([]core.Channel, 0, len(m.Channels))
	for ch := range m.Channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
