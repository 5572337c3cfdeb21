package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"eventflood/internal/core"
)

// Thresholds are the pass/fail criteria of a run. Every limit is inclusive: a run passes when the
// measured value is at most the limit. Unset limits are not checked.
//
//	thresholds:
//	  broadcast: {failed: 1%, latency: {p99: 250ms}}
//	  queue:     {failed: 0%}
//	  events:    {partial: 0.5%, lost: 0%}
//	  reaps:     {longestWait: 30s, maxPending: 10, deleteFailed: 0}
type Thresholds struct {
	Broadcast *ChannelThresholds `yaml:"broadcast"`
	Queue     *ChannelThresholds `yaml:"queue"`
	Events    *EventThresholds   `yaml:"events"`
	Reaps     *ReapThresholds    `yaml:"reaps"`
}

type ChannelThresholds struct {
	Failed  *Percent           `yaml:"failed"`
	Latency *LatencyThresholds `yaml:"latency"`
}

type LatencyThresholds struct {
	Mean time.Duration `yaml:"mean"`
	P50  time.Duration `yaml:"p50"`
	P90  time.Duration `yaml:"p90"`
	P99  time.Duration `yaml:"p99"`
	Max  time.Duration `yaml:"max"`
}

type EventThresholds struct {
	Partial *Percent `yaml:"partial"`
	Lost    *Percent `yaml:"lost"`
}

type ReapThresholds struct {
	LongestWait  time.Duration `yaml:"longestWait"`
	MaxPending   *int          `yaml:"maxPending"`
	DeleteFailed *int          `yaml:"deleteFailed"`
}

// Percent is written as "1.5%" in YAML.
type Percent float64

func (p *Percent) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParsePercent(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*p = v
	return nil
}

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64) + "%"
}

// ParsePercent reads a value between 0% and 100%.
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(s)
	num, ok := strings.CutSuffix(s, "%")
	if !ok {
		return 0, errors.Errorf("percentage %q must end in %%", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "percentage %q", s)
	}
	if v < 0 || v > 100 {
		return 0, errors.Errorf("percentage %q is outside 0%%..100%%", s)
	}
	return Percent(v), nil
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// Check evaluates every configured limit against m.
func (t *Thresholds) Check(m *Metrics) *ThresholdResults {
	r := &ThresholdResults{Passed: true}
	if t == nil {
		return r
	}

	r.checkChannel(core.ChannelBroadcast, t.Broadcast, m.Channels[core.ChannelBroadcast])
	r.checkChannel(core.ChannelQueue, t.Queue, m.Channels[core.ChannelQueue])

	if t.Events != nil {
		r.checkPercent("events.partial", t.Events.Partial, m.Events.PartialRate())
		r.checkPercent("events.lost", t.Events.Lost, m.Events.LostRate())
	}

	if t.Reaps != nil {
		if t.Reaps.LongestWait > 0 {
			r.add("reaps.longestWait", m.Reaps.LongestWait <= t.Reaps.LongestWait,
				FormatDuration(t.Reaps.LongestWait), FormatDuration(m.Reaps.LongestWait))
		}
		r.checkCount("reaps.maxPending", t.Reaps.MaxPending, m.Reaps.MaxPending)
		r.checkCount("reaps.deleteFailed", t.Reaps.DeleteFailed, m.Reaps.DeleteFailed)
	}
	return r
}

// checkChannel treats a channel that saw no attempts as having no failures and no latency.
func (r *ThresholdResults) checkChannel(ch core.Channel, limits *ChannelThresholds, stats *ChannelStats) {
	if limits == nil {
		return
	}
	if stats == nil {
		stats = &ChannelStats{}
	}
	prefix := string(ch) + "."
	r.checkPercent(prefix+"failed", limits.Failed, stats.FailureRate())

	if l := limits.Latency; l != nil {
		for _, c := range []struct {
			name          string
			limit, actual time.Duration
		}{
			{"mean", l.Mean, stats.Latency.Mean},
			{"p50", l.P50, stats.Latency.P50},
			{"p90", l.P90, stats.Latency.P90},
			{"p99", l.P99, stats.Latency.P99},
			{"max", l.Max, stats.Latency.Max},
		} {
			if c.limit > 0 {
				r.add(prefix+"latency."+c.name, c.actual <= c.limit, FormatDuration(c.limit), FormatDuration(c.actual))
			}
		}
	}
}

func (r *ThresholdResults) checkPercent(name string, limit *Percent, actual float64) {
	if limit == nil {
		return
	}
	r.add(name, actual <= float64(*limit), limit.String(), fmt.Sprintf("%.2f%%", actual))
}

func (r *ThresholdResults) checkCount(name string, limit *int, actual int) {
	if limit == nil {
		return
	}
	r.add(name, actual <= *limit, strconv.Itoa(*limit), strconv.Itoa(actual))
}

func (r *ThresholdResults) add(name string, passed bool, threshold, actual string) {
	if !passed {
		r.Passed = false
	}
	r.Results = append(r.Results, ThresholdResult{Name: name, Passed: passed, Threshold: threshold, Actual: actual})
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	var violations []ThresholdResult
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
