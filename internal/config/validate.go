package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"eventflood/internal/timestamp"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

type addFunc func(field, format string, args ...interface{})

// Validate checks everything a load run needs. Returns nil if valid, or ValidationErrors.
func (c *Config) Validate() error {
	return c.validate(c.validateRun, c.validateOffline)
}

// ValidateOffline checks only the sections used by the record, export and analyze commands.
func (c *Config) ValidateOffline() error {
	return c.validate(c.validateOffline)
}

func (c *Config) validate(sections ...func(addFunc)) error {
	var errs ValidationErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	for _, section := range sections {
		section(add)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateRun(add addFunc) {
	if c.Run.Messages <= 0 {
		add("run.messages", "must be positive, got %d", c.Run.Messages)
	}
	if len(c.Run.IDs) == 0 {
		add("run.ids", "required")
	}
	if len(c.Run.Authors) == 0 {
		add("run.authors", "required")
	}
	for i, a := range c.Run.Authors {
		if strings.TrimSpace(a) == "" {
			add(fmt.Sprintf("run.authors[%d]", i), "must not be empty")
		}
	}
	if c.Run.Workers < 1 {
		add("run.workers", "must be at least 1, got %d", c.Run.Workers)
	}

	switch c.Broadcast.Kind {
	case KindMemory:
	case KindSNS, KindKafka, KindPulsar, KindNATS:
		if c.Broadcast.Topic == "" {
			add("broadcast.topic", "required for %s", c.Broadcast.Kind)
		}
		if c.Broadcast.Kind == KindKafka && len(c.Broadcast.Brokers) == 0 {
			add("broadcast.brokers", "required for kafka")
		}
	default:
		add("broadcast.kind", "must be one of sns, kafka, pulsar, nats, memory; got %q", c.Broadcast.Kind)
	}

	switch c.Queue.Kind {
	case KindMemory:
	case KindSQS, KindRabbitMQ, KindRedis:
		if c.Queue.Name == "" {
			add("queue.name", "required for %s", c.Queue.Kind)
		}
	default:
		add("queue.kind", "must be one of sqs, rabbitmq, redis, memory; got %q", c.Queue.Kind)
	}
	if c.Queue.MaxLen < 0 {
		add("queue.maxLen", "must not be negative")
	}

	if c.Pacing.MaxDelay < 0 {
		add("pacing.maxDelay", "must not be negative")
	}
	if c.Pacing.OuterMaxDelay < 0 {
		add("pacing.outerMaxDelay", "must not be negative")
	}
	if c.Pacing.MaxRate < 0 {
		add("pacing.maxRate", "must not be negative")
	}

	if c.Reaper.Enabled() {
		if c.Reaper.CadenceBasis != CadenceSends && c.Reaper.CadenceBasis != CadenceIndex {
			add("reaper.cadenceBasis", "must be 'sends' or 'index', got %q", c.Reaper.CadenceBasis)
		}
		if c.Reaper.PageSize <= 0 {
			add("reaper.pageSize", "must be positive")
		}
		if c.Reaper.PendingThreshold != nil && *c.Reaper.PendingThreshold < 0 {
			add("reaper.pendingThreshold", "must not be negative")
		}
		if c.Reaper.RetryInterval <= 0 {
			add("reaper.retryInterval", "must be positive")
		}
		if c.Reaper.MaxWait < 0 {
			add("reaper.maxWait", "must not be negative")
		}
		if c.Reaper.Namespace == "" {
			add("reaper.namespace", "required")
		}
	}
}

func (c *Config) validateOffline(add addFunc) {
	if c.Sink.Database == "" {
		add("sink.database", "required")
	}
	for _, z := range []struct{ field, zone string }{
		{"sink.zone", c.Sink.Zone},
		{"analysis.eventZone", c.Analysis.EventZone},
		{"analysis.createdAtZone", c.Analysis.CreatedAtZone},
	} {
		if _, err := timestamp.LoadLocation(z.zone); err != nil {
			add(z.field, "unknown time zone %q", z.zone)
		}
	}

	kinds := make([]string, 0, len(c.Analysis.BinWidth))
	for kind := range c.Analysis.BinWidth {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		w := c.Analysis.BinWidth[kind]
		switch {
		case w <= 0:
			add("analysis.binWidth."+kind, "must be positive")
		case w%time.Millisecond != 0:
			// histogram buckets are whole milliseconds
			add("analysis.binWidth."+kind, "must be a whole number of milliseconds")
		}
	}
}
