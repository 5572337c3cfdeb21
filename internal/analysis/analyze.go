package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"eventflood/internal/collector"
	"eventflood/internal/timestamp"
)

// DefaultBinWidthKey names the bin width used for event types without their own.
const DefaultBinWidthKey = "default"

// DefaultBinWidths are the histogram widths per event type.
var DefaultBinWidths = map[string]time.Duration{
	"sns":               10 * time.Millisecond,
	"sqs":               30 * time.Millisecond,
	DefaultBinWidthKey: 10 * time.Millisecond,
}

// Config selects the zones the two timestamp columns were written in and the histogram widths.
type Config struct {
	EventZone     string
	CreatedAtZone string
	BinWidth      map[string]time.Duration
}

func (c Config) binWidth(eventType string) time.Duration {
	for _, widths := range []map[string]time.Duration{c.BinWidth, DefaultBinWidths} {
		if w, ok := widths[eventType]; ok && w > 0 {
			return w
		}
	}
	if w, ok := c.BinWidth[DefaultBinWidthKey]; ok && w > 0 {
		return w
	}
	return DefaultBinWidths[DefaultBinWidthKey]
}

// Report holds one TypeReport per event type, sorted by type.
type Report struct {
	Rows  int          `json:"rows" yaml:"rows"`
	Types []TypeReport `json:"types" yaml:"types"`
}

// TypeReport is the lag distribution of one event type. Lags are in milliseconds.
type TypeReport struct {
	EventType string  `json:"eventType" yaml:"eventType"`
	Count     int     `json:"count" yaml:"count"`
	MinMs     float64 `json:"minMs" yaml:"minMs"`
	MaxMs     float64 `json:"maxMs" yaml:"maxMs"`
	MeanMs    float64 `json:"meanMs" yaml:"meanMs"`
	P50Ms     float64 `json:"p50Ms" yaml:"p50Ms"`
	P90Ms     float64 `json:"p90Ms" yaml:"p90Ms"`
	P99Ms     float64 `json:"p99Ms" yaml:"p99Ms"`
	// NegativeLags counts records created before their event was sent: clock skew or a zone mismatch.
	NegativeLags int           `json:"negativeLags" yaml:"negativeLags"`
	BinWidthMs   float64       `json:"binWidthMs" yaml:"binWidthMs"`
	Histogram    []Bucket      `json:"histogram" yaml:"histogram"`
	Authors      []AuthorCount `json:"authors" yaml:"authors"`
}

// Bucket covers [LowerMs, UpperMs). The last bucket also includes its upper edge.
type Bucket struct {
	LowerMs float64 `json:"lowerMs" yaml:"lowerMs"`
	UpperMs float64 `json:"upperMs" yaml:"upperMs"`
	Count   int     `json:"count" yaml:"count"`
}

type AuthorCount struct {
	Author string `json:"author" yaml:"author"`
	Count  int    `json:"count" yaml:"count"`
}

// Analyze computes lag = CreatedAtTs - EventTs per row, both normalized to UTC first, and groups by event type.
func Analyze(rows []Row, cfg Config) (*Report, error) {
	eventLoc, err := timestamp.LoadLocation(cfg.EventZone)
	if err != nil {
		return nil, err
	}
	createdLoc, err := timestamp.LoadLocation(cfg.CreatedAtZone)
	if err != nil {
		return nil, err
	}

	lags := make(map[string][]time.Duration)
	authors := make(map[string]map[string]int)
	for i, row := range rows {
		lag, err := Lag(row, eventLoc, createdLoc)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d (id %s)", i+1, row.ID)
		}
		lags[row.EventType] = append(lags[row.EventType], lag)
		if authors[row.EventType] == nil {
			authors[row.EventType] = make(map[string]int)
		}
		authors[row.EventType][row.Author]++
	}

	report := &Report{Rows: len(rows)}
	for eventType, values := range lags {
		tr := summarize(eventType, values, cfg.binWidth(eventType))
		tr.Authors = sortedAuthors(authors[eventType])
		report.Types = append(report.Types, tr)
	}
	sort.Slice(report.Types, func(i, j int) bool {
		return report.Types[i].EventType < report.Types[j].EventType
	})
	return report, nil
}

// Lag returns the processing delay of one row.
func Lag(row Row, eventLoc, createdLoc *time.Location) (time.Duration, error) {
	sent, err := timestamp.Normalize(row.EventTs, eventLoc)
	if err != nil {
		return 0, errors.Wrap(err, "EventTs")
	}
	created, err := timestamp.Normalize(row.CreatedAtTs, createdLoc)
	if err != nil {
		return 0, errors.Wrap(err, "CreatedAtTs")
	}
	return created.Sub(sent), nil
}

func summarize(eventType string, values []time.Duration, width time.Duration) TypeReport {
	sorted := make([]time.Duration, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	negative := 0
	for _, v := range sorted {
		sum += v
		if v < 0 {
			negative++
		}
	}

	return TypeReport{
		EventType:    eventType,
		Count:        len(sorted),
		MinMs:        ms(sorted[0]),
		MaxMs:        ms(sorted[len(sorted)-1]),
		MeanMs:       ms(sum) / float64(len(sorted)),
		P50Ms:        ms(collector.ComputePercentile(sorted, 0.50)),
		P90Ms:        ms(collector.ComputePercentile(sorted, 0.90)),
		P99Ms:        ms(collector.ComputePercentile(sorted, 0.99)),
		NegativeLags: negative,
		BinWidthMs:   ms(width),
		Histogram:    histogram(sorted, width),
	}
}

// histogram bins sorted values into equal-width buckets starting at the minimum.
func histogram(sorted []time.Duration, width time.Duration) []Bucket {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	n := int((hi-lo)/width) + 1
	buckets := make([]Bucket, n)
	for i := range buckets {
		lower := lo + time.Duration(i)*width
		buckets[i] = Bucket{LowerMs: ms(lower), UpperMs: ms(lower + width)}
	}
	for _, v := range sorted {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		buckets[i].Count++
	}
	return buckets
}

func sortedAuthors(counts map[string]int) []AuthorCount {
	out := make([]AuthorCount, 0, len(counts))
	for author, n := range counts {
		out = append(out, AuthorCount{Author: author, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Author < out[j].Author
	})
	return out
}

func ms(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Microsecond)) / 1000
}
