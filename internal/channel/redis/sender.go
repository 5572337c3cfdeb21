// Package redis appends events to a Redis stream, the point-to-point channel for local runs.
package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"eventflood/internal/publish"
)

// BodyField is the stream entry field holding the serialized event. Attributes use their own names.
const BodyField = "body"

type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen caps the stream approximately. Zero leaves it unbounded.
	MaxLen int64
}

func (c *Config) withDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

func (c Config) Validate() error {
	if c.Stream == "" {
		return errors.New("redis stream is required")
	}
	if c.MaxLen < 0 {
		return errors.New("redis stream max length must not be negative")
	}
	return nil
}

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type Sender struct {
	client streamClient
	stream string
	maxLen int64
}

func New(cfg Config) (*Sender, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return newSender(rdb, cfg), nil
}

func newSender(client streamClient, cfg Config) *Sender {
	return &Sender{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen}
}

// Enqueue returns the stream entry id assigned by Redis.
func (s *Sender) Enqueue(ctx context.Context, body []byte, attrs publish.Attributes) (string, error) {
	values := make(map[string]interface{}, len(attrs)+1)
	values[BodyField] = string(body)
	for k, v := range attrs {
		values[k] = v
	}
	args := &redis.XAddArgs{Stream: s.stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", errors.Wrapf(err, "appending to stream %s", s.stream)
	}
	return id, nil
}

func (s *Sender) Close() error {
	return s.client.Close()
}
