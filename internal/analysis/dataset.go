// Package analysis computes end-to-end latency statistics from the records written by the event sinks.
package analysis

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Columns is the dataset column order, as exported by the sink.
var Columns = []string{"Id", "PayloadId", "EventType", "CustomMessage", "Author", "EventTs", "CreatedAtTs"}

// Row is one record of the latency dataset. Timestamps stay raw until analysis.
type Row struct {
	ID            string `json:"Id"`
	PayloadID     string `json:"PayloadId"`
	EventType     string `json:"EventType"`
	CustomMessage string `json:"CustomMessage"`
	Author        string `json:"Author"`
	EventTs       string `json:"EventTs"`
	CreatedAtTs   string `json:"CreatedAtTs"`
}

// LoadDataset loads a CSV or JSON dataset file.
func LoadDataset(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	defer f.Close()

	var rows []Row
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt", "":
		rows, err = ReadDataset(f)
	case ".json":
		rows, err = readJSON(f)
	default:
		return nil, errors.Errorf("unsupported dataset format %q (use .csv or .json)", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("dataset %s is empty", path)
	}
	return rows, nil
}

// ReadDataset reads CSV rows. A first row whose first cell is not numeric is a header and columns are
// then matched by name; otherwise Columns order is assumed.
func ReadDataset(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	index := positional()
	if _, err := strconv.Atoi(strings.TrimSpace(records[0][0])); err != nil {
		index, err = headerIndex(records[0])
		if err != nil {
			return nil, err
		}
		records = records[1:]
	}

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		get := func(col string) string {
			pos, ok := index[col]
			if !ok || pos >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[pos])
		}
		row := Row{
			ID:            get("Id"),
			PayloadID:     get("PayloadId"),
			EventType:     get("EventType"),
			CustomMessage: get("CustomMessage"),
			Author:        get("Author"),
			EventTs:       get("EventTs"),
			CreatedAtTs:   get("CreatedAtTs"),
		}
		if row.EventType == "" || row.EventTs == "" || row.CreatedAtTs == "" {
			return nil, errors.Errorf("row %d: EventType, EventTs and CreatedAtTs are required", i+1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func positional() map[string]int {
	index := make(map[string]int, len(Columns))
	for i, col := range Columns {
		index[col] = i
	}
	return index
}

// headerIndex maps column names case-insensitively. EventTimestamp and CreatedAtTimestamp, the names
// used by the record writers' table, are accepted as aliases.
func headerIndex(header []string) (map[string]int, error) {
	aliases := map[string]string{
		"eventtimestamp":     "EventTs",
		"createdattimestamp": "CreatedAtTs",
	}
	for _, col := range Columns {
		aliases[strings.ToLower(col)] = col
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if col, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			index[col] = i
		}
	}
	for _, required := range []string{"EventType", "EventTs", "CreatedAtTs"} {
		if _, ok := index[required]; !ok {
			return nil, errors.Errorf("header has no %s column", required)
		}
	}
	return index, nil
}

func readJSON(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "JSON must be an array of objects")
	}
	return rows, nil
}
