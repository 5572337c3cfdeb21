// Package logging builds the logrus logger shared by the producer, the reaper and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatPlain = "plain"
)

type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CommandLineFormatter prints only the message, for human-facing one-line output.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}

// New returns a logger writing to out (stderr when nil). An empty level means info.
func New(cfg Config, out io.Writer) (*log.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	logger := log.New()
	logger.SetOutput(out)

	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&log.JSONFormatter{})
	case FormatPlain:
		logger.SetFormatter(&CommandLineFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}
	return logger, nil
}
