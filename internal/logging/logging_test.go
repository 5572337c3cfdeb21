package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.WithField("channel", "queue").Debug("sent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sent", entry["msg"])
	assert.Equal(t, "queue", entry["channel"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_Plain(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "plain"}, &buf)
	require.NoError(t, err)

	logger.WithField("ignored", true).Info("reaped 4 jobs")

	assert.Equal(t, "reaped 4 jobs\n", buf.String())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"}, nil)
	assert.Error(t, err)
}
