// Package config handles the YAML run configuration and the dotenv/environment credentials.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"eventflood/internal/collector"
	"eventflood/internal/corpus"
	"eventflood/internal/logging"
	"eventflood/internal/reaper"
)

// Channel kinds.
const (
	KindMemory   = "memory"
	KindSNS      = "sns"
	KindKafka    = "kafka"
	KindPulsar   = "pulsar"
	KindNATS     = "nats"
	KindSQS      = "sqs"
	KindRabbitMQ = "rabbitmq"
	KindRedis    = "redis"
)

// Reap cadence bases.
const (
	CadenceSends = "sends"
	CadenceIndex = "index"
)

// Config is the root configuration structure.
type Config struct {
	Run        RunConfig             `yaml:"run"`
	Broadcast  BroadcastConfig       `yaml:"broadcast"`
	Queue      QueueConfig           `yaml:"queue"`
	AWS        AWSConfig             `yaml:"aws"`
	Pacing     PacingConfig          `yaml:"pacing"`
	Reaper     ReaperConfig          `yaml:"reaper"`
	Metrics    MetricsConfig         `yaml:"metrics"`
	Log        logging.Config        `yaml:"log"`
	Sink       SinkConfig            `yaml:"sink"`
	Analysis   AnalysisConfig        `yaml:"analysis"`
	Thresholds *collector.Thresholds `yaml:"thresholds,omitempty"`
}

// RunConfig shapes the corpus and the send loop.
type RunConfig struct {
	Messages int      `yaml:"messages"`
	IDs      []int    `yaml:"ids"`
	Authors  []string `yaml:"authors"`
	Greeting string   `yaml:"greeting"`
	Message  string   `yaml:"message"`
	// Seed fixes the shuffle. Zero draws a fresh seed per run.
	Seed    int64 `yaml:"seed"`
	Workers int   `yaml:"workers"`
}

type BroadcastConfig struct {
	Kind string `yaml:"kind"`
	// Topic is the SNS topic ARN, the Kafka or Pulsar topic, or the NATS subject.
	Topic     string   `yaml:"topic"`
	Brokers   []string `yaml:"brokers"`
	URL       string   `yaml:"url"`
	JetStream bool     `yaml:"jetstream"`
}

type QueueConfig struct {
	Kind string `yaml:"kind"`
	// Name is the SQS queue name, the RabbitMQ queue or the Redis stream key.
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	MaxLen   int64  `yaml:"maxLen"`
	Declare  bool   `yaml:"declare"`
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	CredentialsFile string `yaml:"credentialsFile"`
}

type PacingConfig struct {
	MaxDelay      time.Duration `yaml:"maxDelay"`
	OuterMaxDelay time.Duration `yaml:"outerMaxDelay"`
	// MaxRate caps sends per second. Zero is unlimited.
	MaxRate float64 `yaml:"maxRate"`
}

type ReaperConfig struct {
	Disabled   bool   `yaml:"disabled"`
	Namespace  string `yaml:"namespace"`
	Kubeconfig string `yaml:"kubeconfig"`
	// Every is the reap cadence. Negative disables reaping.
	Every            int           `yaml:"every"`
	CadenceBasis     string        `yaml:"cadenceBasis"`
	PageSize int64 `yaml:"pageSize"`
	// PendingThreshold is left nil when unset so that an explicit 0, a full drain, survives defaulting.
	PendingThreshold *int          `yaml:"pendingThreshold"`
	RetryInterval    time.Duration `yaml:"retryInterval"`
	// MaxRetries bounds backpressure rechecks. Negative is unbounded.
	MaxRetries int           `yaml:"maxRetries"`
	MaxWait    time.Duration `yaml:"maxWait"`
	QPS        float32       `yaml:"qps"`
	Burst      int           `yaml:"burst"`
}

// Enabled reports whether the run loop should reap at all.
func (r ReaperConfig) Enabled() bool {
	return !r.Disabled && r.Every > 0
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type SinkConfig struct {
	Database string `yaml:"database"`
	Zone     string `yaml:"zone"`
}

type AnalysisConfig struct {
	EventZone     string                   `yaml:"eventZone"`
	CreatedAtZone string                   `yaml:"createdAtZone"`
	BinWidth      map[string]time.Duration `yaml:"binWidth"`
}

// Default returns a configuration equivalent to an empty file.
func Default() *Config {
	cfg := &Config{}
	cfg.withDefaults()
	return cfg
}

// LoadConfig reads and parses a YAML configuration file, then applies defaults.
// Validation is left to the caller so that environment and flag overrides land first.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	cfg.withDefaults()
	return &cfg, nil
}

func (c *Config) withDefaults() {
	if c.Run.Messages == 0 {
		c.Run.Messages = 2400
	}
	if len(c.Run.IDs) == 0 {
		c.Run.IDs = []int{4, 5}
	}
	if len(c.Run.Authors) == 0 {
		c.Run.Authors = []string{"Ankur", "Brian", "David"}
	}
	if c.Run.Greeting == "" {
		c.Run.Greeting = corpus.DefaultGreeting
	}
	if c.Run.Message == "" {
		c.Run.Message = corpus.DefaultMessage
	}
	if c.Run.Workers == 0 {
		c.Run.Workers = 1
	}
	if c.Broadcast.Kind == "" {
		c.Broadcast.Kind = KindSNS
	}
	if c.Queue.Kind == "" {
		c.Queue.Kind = KindSQS
	}
	if c.Pacing.MaxDelay == 0 {
		c.Pacing.MaxDelay = 300 * time.Millisecond
	}
	if c.Reaper.Namespace == "" {
		c.Reaper.Namespace = "default"
	}
	if c.Reaper.Every == 0 {
		c.Reaper.Every = 50
	}
	if c.Reaper.CadenceBasis == "" {
		c.Reaper.CadenceBasis = CadenceSends
	}
	if c.Reaper.PageSize == 0 {
		c.Reaper.PageSize = 50
	}
	if c.Reaper.PendingThreshold == nil {
		threshold := reaper.DefaultPendingThreshold
		c.Reaper.PendingThreshold = &threshold
	}
	if c.Reaper.RetryInterval == 0 {
		c.Reaper.RetryInterval = time.Second
	}
	if c.Reaper.MaxRetries == 0 {
		c.Reaper.MaxRetries = 120
	}
	if c.Reaper.QPS == 0 {
		c.Reaper.QPS = 50
	}
	if c.Reaper.Burst == 0 {
		c.Reaper.Burst = 100
	}
	if c.Sink.Database == "" {
		c.Sink.Database = "events.db"
	}
	if c.Sink.Zone == "" {
		c.Sink.Zone = "America/New_York"
	}
	if c.Analysis.EventZone == "" {
		c.Analysis.EventZone = "America/New_York"
	}
	if c.Analysis.CreatedAtZone == "" {
		c.Analysis.CreatedAtZone = "America/New_York"
	}
}
