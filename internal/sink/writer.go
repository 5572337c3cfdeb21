package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"eventflood/internal/core"
	"eventflood/internal/timestamp"
)

// DefaultZone is the zone records are written in.
const DefaultZone = "America/New_York"

// Inserter persists one record and returns its row id.
type Inserter interface {
	Insert(ctx context.Context, rec Record) (int64, error)
}

// Writer stamps and stores decoded records. Event timestamps without an offset are read in Zone.
type Writer struct {
	Store Inserter
	Clock core.Clock
	Zone  *time.Location
}

// NewWriter creates a Writer for the named zone ("" means DefaultZone).
func NewWriter(store Inserter, zone string) (*Writer, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := timestamp.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &Writer{Store: store, Clock: core.RealClock{}, Zone: loc}, nil
}

// Write sets CreatedAtTimestamp to now, rewrites EventTimestamp in the writer's zone and stores the record.
func (w *Writer) Write(ctx context.Context, rec Record) (Record, error) {
	eventTs, err := timestamp.Parse(rec.EventTimestamp, w.Zone)
	if err != nil {
		return Record{}, errors.Wrap(err, "parsing event timestamp")
	}
	rec.EventTimestamp = timestamp.Format(eventTs.In(w.Zone))
	rec.CreatedAtTimestamp = timestamp.Format(w.Clock.Now().In(w.Zone))

	id, err := w.Store.Insert(ctx, rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "storing record")
	}
	rec.ID = id
	return rec, nil
}
