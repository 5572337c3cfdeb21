package cmd

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventflood/internal/config"
)

func execute(t *testing.T, args ...string) int {
	t.Helper()
	envFile := filepath.Join(t.TempDir(), "missing.env")
	rootCmd.SetArgs(append([]string{args[0], "--env-file", envFile, "--log-level", "error"}, args[1:]...))
	return Execute()
}

func queueEnvelope(t *testing.T, author, ts string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"body":              map[string]any{"id": 4, "greeting": "hello", "message": "tbd", "author": author},
		"messageAttributes": map[string]any{"Timestamp": map[string]any{"StringValue": ts}},
	})
	require.NoError(t, err)
	out, err := json.Marshal(map[string]any{
		"context": map[string]any{"id": "1", "type": "sqs"},
		"data":    base64.StdEncoding.EncodeToString(data),
	})
	require.NoError(t, err)
	return string(out)
}

func TestRun_MemoryChannels(t *testing.T) {
	code := execute(t, "run",
		"--broadcast", "memory", "--queue", "memory",
		"--messages", "20", "--no-reap", "--max-delay", "1ms", "--quiet")

	assert.Equal(t, ExitSuccess, code)
}

func TestRun_ThresholdsOnEventOutcomes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  broadcast: {failed: 0%}
  queue: {failed: 0%}
  events: {partial: 0%, lost: 0%}
`), 0o644))
	defer func() { cfgFile = "" }()

	code := execute(t, "run", "--config", path,
		"--broadcast", "memory", "--queue", "memory",
		"--messages", "12", "--no-reap", "--max-delay", "1ms", "--quiet")

	assert.Equal(t, ExitSuccess, code)
}

func TestRun_InvalidConfig(t *testing.T) {
	code := execute(t, "run", "--broadcast", "memory", "--queue", "memory", "--messages", "-1")

	assert.Equal(t, ExitConfigError, code)
}

func TestRun_BadOutput(t *testing.T) {
	code := execute(t, "run", "--output", "xml")

	assert.Equal(t, ExitConfigError, code)
	require.NoError(t, runCmd.Flags().Set("output", "text"))
}

func TestApplyRunFlags_ZeroPendingThreshold(t *testing.T) {
	require.NoError(t, runCmd.Flags().Set("pending-threshold", "0"))
	defer func() { require.NoError(t, runCmd.Flags().Set("pending-threshold", "5")) }()
	cfg := config.Default()

	applyRunFlags(runCmd.Flags(), cfg)

	require.NotNil(t, cfg.Reaper.PendingThreshold)
	assert.Equal(t, 0, *cfg.Reaper.PendingThreshold)
}

func TestRecordExportAnalyze(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "events.db")
	csvPath := filepath.Join(dir, "records.csv")

	code := execute(t, "record", "--type", "sqs", "--database", db, "--zone", "UTC",
		"--msg", queueEnvelope(t, "Ankur", "2024-01-01 00:00:00.000000"))
	require.Equal(t, ExitSuccess, code)

	code = execute(t, "export", "--database", db, "--out", csvPath)
	require.Equal(t, ExitSuccess, code)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(string(data)), ",")
	require.Len(t, fields, 7)
	assert.Equal(t, []string{"1", "4", "sqs", "tbd", "Ankur", "2024-01-01 00:00:00.000000"}, fields[:6])

	code = execute(t, "analyze", csvPath, "--event-zone", "UTC", "--created-zone", "UTC", "--output", "json")
	assert.Equal(t, ExitSuccess, code)
}

func TestRecord_MalformedEnvelope(t *testing.T) {
	db := filepath.Join(t.TempDir(), "events.db")

	code := execute(t, "record", "--type", "sqs", "--database", db, "--zone", "UTC", "--msg", `{"context":{}}`)

	assert.Equal(t, ExitError, code)
}

func TestRecord_UnknownType(t *testing.T) {
	db := filepath.Join(t.TempDir(), "events.db")

	code := execute(t, "record", "--type", "kafka", "--database", db, "--msg", "{}")

	assert.Equal(t, ExitConfigError, code)
	recordType = "sqs"
}

func TestAnalyze_MissingDataset(t *testing.T) {
	code := execute(t, "analyze", filepath.Join(t.TempDir(), "nope.csv"), "--output", "text")

	assert.Equal(t, ExitError, code)
}
