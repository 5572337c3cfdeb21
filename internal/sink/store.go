package sink

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_record (
	Id INTEGER PRIMARY KEY AUTOINCREMENT,
	PayloadId INTEGER NOT NULL,
	EventType TEXT NOT NULL,
	CustomMessage TEXT,
	Author TEXT NOT NULL,
	EventTs TEXT NOT NULL,
	CreatedAtTs TEXT NOT NULL
);
`

// Store keeps records in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path. ":memory:" is accepted.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "creating directory for %s", path)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sqlite database %s", path)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating event_record table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO event_record (PayloadId, EventType, CustomMessage, Author, EventTs, CreatedAtTs) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.PayloadID, rec.EventType, rec.CustomMessage, rec.Author, rec.EventTimestamp, rec.CreatedAtTimestamp)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Records returns every record in insertion order.
func (s *Store) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT Id, PayloadId, EventType, COALESCE(CustomMessage, ''), Author, EventTs, CreatedAtTs FROM event_record ORDER BY Id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying event_record")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.PayloadID, &r.EventType, &r.CustomMessage, &r.Author, &r.EventTimestamp, &r.CreatedAtTimestamp); err != nil {
			return nil, errors.Wrap(err, "scanning event_record")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportCSV writes every record as Id, PayloadId, EventType, CustomMessage, Author, EventTs, CreatedAtTs
// without a header row. It returns the number of rows written.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.PayloadID),
			r.EventType,
			r.CustomMessage,
			r.Author,
			r.EventTimestamp,
			r.CreatedAtTimestamp,
		}
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(records), cw.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}
