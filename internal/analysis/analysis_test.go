package analysis

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const headerless = `1,4,sqs,tbd,Ankur,2024-01-01 00:00:00.000000,2024-01-01 00:00:00.100000
2,5,sqs,tbd,Ankur,2024-01-01 00:00:01.000000,2024-01-01 00:00:01.040000
3,4,sns,tbd,David,2024-01-01 00:00:02.000000,2024-01-01 00:00:02.015000
4,5,sqs,tbd,Brian,2024-01-01 00:00:03.000000,2024-01-01 00:00:03.010000
`

func TestReadDataset_Headerless(t *testing.T) {
	rows, err := ReadDataset(strings.NewReader(headerless))

	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Row{
		ID: "1", PayloadID: "4", EventType: "sqs", CustomMessage: "tbd", Author: "Ankur",
		EventTs: "2024-01-01 00:00:00.000000", CreatedAtTs: "2024-01-01 00:00:00.100000",
	}, rows[0])
}

func TestReadDataset_HeaderByName(t *testing.T) {
	data := "author,EventType,CreatedAtTimestamp,EventTimestamp\n" +
		"David,sns,2024-01-01 00:00:00.020000,2024-01-01 00:00:00.000000\n"

	rows, err := ReadDataset(strings.NewReader(data))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "David", rows[0].Author)
	assert.Equal(t, "2024-01-01 00:00:00.000000", rows[0].EventTs)
	assert.Equal(t, "2024-01-01 00:00:00.020000", rows[0].CreatedAtTs)
}

func TestReadDataset_HeaderMissingColumn(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("Id,EventType,EventTs\n1,sqs,x\n"))

	assert.ErrorContains(t, err, "CreatedAtTs")
}

func TestReadDataset_MissingFields(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("1,4,sqs,tbd,Ankur\n"))

	assert.ErrorContains(t, err, "row 1")
}

func TestLoadDataset_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"Id":"1","EventType":"sns","Author":"David","EventTs":"2024-01-01T05:00:00Z","CreatedAtTs":"2024-01-01 00:00:00.010000"}
	]`), 0o644))

	rows, err := LoadDataset(path)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sns", rows[0].EventType)
}

func TestLoadDataset_UnsupportedAndEmpty(t *testing.T) {
	dir := t.TempDir()
	xml := filepath.Join(dir, "records.xml")
	require.NoError(t, os.WriteFile(xml, []byte("<rows/>"), 0o644))
	_, err := LoadDataset(xml)
	assert.ErrorContains(t, err, "unsupported dataset format")

	empty := filepath.Join(dir, "records.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadDataset(empty)
	assert.ErrorContains(t, err, "empty")
}

func TestAnalyze_PerTypeStatistics(t *testing.T) {
	rows, err := ReadDataset(strings.NewReader(headerless))
	require.NoError(t, err)

	report, err := Analyze(rows, Config{EventZone: "UTC", CreatedAtZone: "UTC"})

	require.NoError(t, err)
	assert.Equal(t, 4, report.Rows)
	require.Len(t, report.Types, 2)

	sns := report.Types[0]
	assert.Equal(t, "sns", sns.EventType)
	assert.Equal(t, 1, sns.Count)
	assert.Equal(t, 15.0, sns.MinMs)
	assert.Equal(t, 10.0, sns.BinWidthMs)

	sqs := report.Types[1]
	assert.Equal(t, "sqs", sqs.EventType)
	assert.Equal(t, 3, sqs.Count)
	assert.Equal(t, 10.0, sqs.MinMs)
	assert.Equal(t, 100.0, sqs.MaxMs)
	assert.Equal(t, 50.0, sqs.MeanMs)
	assert.Equal(t, 40.0, sqs.P50Ms)
	assert.Equal(t, 30.0, sqs.BinWidthMs)
	assert.Equal(t, 0, sqs.NegativeLags)
	assert.Equal(t, []AuthorCount{{"Ankur", 2}, {"Brian", 1}}, sqs.Authors)

	// 10..100 in 30ms bins: [10,40) [40,70) [70,100) [100,130)
	require.Len(t, sqs.Histogram, 4)
	assert.Equal(t, Bucket{LowerMs: 10, UpperMs: 40, Count: 1}, sqs.Histogram[0])
	assert.Equal(t, 1, sqs.Histogram[1].Count)
	assert.Equal(t, 0, sqs.Histogram[2].Count)
	assert.Equal(t, 1, sqs.Histogram[3].Count)
}

func TestAnalyze_SameInstantDifferentZonesHasZeroLag(t *testing.T) {
	rows := []Row{{
		EventType:   "sns",
		Author:      "David",
		EventTs:     "2024-01-01T05:00:00.000Z",
		CreatedAtTs: "2024-01-01 00:00:00.000000",
	}}

	report, err := Analyze(rows, Config{EventZone: "UTC", CreatedAtZone: "America/New_York"})

	require.NoError(t, err)
	assert.Equal(t, 0.0, report.Types[0].MinMs)
	assert.Equal(t, 0.0, report.Types[0].MaxMs)
	require.Len(t, report.Types[0].Histogram, 1)
	assert.Equal(t, 1, report.Types[0].Histogram[0].Count)
}

func TestAnalyze_ReportsNegativeLag(t *testing.T) {
	rows := []Row{
		{EventType: "sqs", Author: "Ankur", EventTs: "2024-01-01 00:00:00.500000", CreatedAtTs: "2024-01-01 00:00:00.000000"},
		{EventType: "sqs", Author: "Ankur", EventTs: "2024-01-01 00:00:00.000000", CreatedAtTs: "2024-01-01 00:00:00.100000"},
	}

	report, err := Analyze(rows, Config{EventZone: "UTC", CreatedAtZone: "UTC"})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Types[0].NegativeLags)
	assert.Equal(t, -500.0, report.Types[0].MinMs)

	var buf bytes.Buffer
	FormatText(&buf, report)
	assert.Contains(t, buf.String(), "WARNING: 1 records created before their event was sent")
}

func TestAnalyze_ConfiguredBinWidth(t *testing.T) {
	rows := []Row{{EventType: "kafka", EventTs: "2024-01-01 00:00:00", CreatedAtTs: "2024-01-01 00:00:00.050000"}}

	report, err := Analyze(rows, Config{BinWidth: map[string]time.Duration{DefaultBinWidthKey: 25 * time.Millisecond}})

	require.NoError(t, err)
	assert.Equal(t, 25.0, report.Types[0].BinWidthMs)
}

func TestAnalyze_BadTimestamp(t *testing.T) {
	rows := []Row{{ID: "7", EventType: "sqs", EventTs: "soon", CreatedAtTs: "2024-01-01 00:00:00"}}

	_, err := Analyze(rows, Config{})

	assert.ErrorContains(t, err, "row 1 (id 7): EventTs")
}

func TestAnalyze_UnknownZone(t *testing.T) {
	_, err := Analyze(nil, Config{EventZone: "Mars/Olympus_Mons"})

	assert.Error(t, err)
}

func TestFormatText(t *testing.T) {
	rows, err := ReadDataset(strings.NewReader(headerless))
	require.NoError(t, err)
	report, err := Analyze(rows, Config{EventZone: "UTC", CreatedAtZone: "UTC"})
	require.NoError(t, err)

	var buf bytes.Buffer
	FormatText(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "eventflood - Latency Analysis")
	assert.Contains(t, out, "SNS: min=15.000ms, max=15.000ms, mean=15.000ms")
	assert.Contains(t, out, "SQS: min=10.000ms, max=100.000ms, mean=50.000ms")
	assert.Contains(t, out, "Histogram (30ms bins):")
	assert.NotContains(t, out, "WARNING")
}

func TestFormatText_Empty(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, &Report{})
	assert.Equal(t, "No records\n", buf.String())
}

func TestFormatJSONAndYAML(t *testing.T) {
	rows, err := ReadDataset(strings.NewReader(headerless))
	require.NoError(t, err)
	report, err := Analyze(rows, Config{EventZone: "UTC", CreatedAtZone: "UTC"})
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	require.NoError(t, FormatJSON(&jsonBuf, report))
	var fromJSON Report
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Equal(t, *report, fromJSON)

	var yamlBuf bytes.Buffer
	require.NoError(t, FormatYAML(&yamlBuf, report))
	assert.Contains(t, yamlBuf.String(), "eventType: sqs")
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, report.Types[1].Histogram, fromYAML.Types[1].Histogram)
}
