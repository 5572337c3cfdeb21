package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// barWidth is the length of the longest histogram bar.
const barWidth = 40

// FormatText writes a human-readable report with one section per event type.
func FormatText(w io.Writer, r *Report) {
	if len(r.Types) == 0 {
		fmt.Fprintln(w, "No records")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "eventflood - Latency Analysis")
	fmt.Fprintln(w, "=============================")
	fmt.Fprintf(w, "Records: %d\n", r.Rows)

	for _, t := range r.Types {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "%s: min=%.3fms, max=%.3fms, mean=%.3fms\n", strings.ToUpper(t.EventType), t.MinMs, t.MaxMs, t.MeanMs)
		fmt.Fprintf(w, "  Count:  %d\n", t.Count)
		fmt.Fprintf(w, "  P50:    %.3fms\n", t.P50Ms)
		fmt.Fprintf(w, "  P90:    %.3fms\n", t.P90Ms)
		fmt.Fprintf(w, "  P99:    %.3fms\n", t.P99Ms)
		if t.NegativeLags > 0 {
			fmt.Fprintf(w, "  WARNING: %d records created before their event was sent (clock skew or zone mismatch)\n", t.NegativeLags)
		}

		fmt.Fprintln(w, "  Authors:")
		for _, a := range t.Authors {
			fmt.Fprintf(w, "    %-12s %d\n", a.Author, a.Count)
		}

		fmt.Fprintf(w, "  Histogram (%gms bins):\n", t.BinWidthMs)
		peak := 0
		for _, b := range t.Histogram {
			if b.Count > peak {
				peak = b.Count
			}
		}
		for _, b := range t.Histogram {
			bar := 0
			if peak > 0 {
				bar = b.Count * barWidth / peak
			}
			fmt.Fprintf(w, "    [%10.3f, %10.3f) %6d %s\n", b.LowerMs, b.UpperMs, b.Count, strings.Repeat("#", bar))
		}
	}
	fmt.Fprintln(w, "")
}

// FormatJSON writes the report as indented JSON.
func FormatJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// FormatYAML writes the report as YAML.
func FormatYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
