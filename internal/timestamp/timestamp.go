// Package timestamp holds the one time format shared by the producer, the event sinks and the
// latency analysis. Every comparison between timestamps written by different processes goes
// through Normalize so both sides land on the same UTC basis.
package timestamp

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
)

// Layout is the wire format of event and record timestamps (microsecond precision).
const Layout = "2006-01-02 15:04:05.000000"

// layouts accepted by Parse, most specific first. Layouts without a zone are read in the caller's location.
var layouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02 15:04:05", false},
}

// Format renders t in its own location using Layout.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse reads s in loc. Timestamps that carry their own offset (RFC3339) ignore loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, l := range layouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}

// Normalize parses s in loc and returns the instant in UTC.
func Normalize(s string, loc *time.Location) (time.Time, error) {
	t, err := Parse(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// LoadLocation is time.LoadLocation with "" and "Local" mapped to the process's local zone.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading time zone %q", name)
	}
	return loc, nil
}
