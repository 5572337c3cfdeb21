// Package kafka broadcasts events to a Kafka topic using franz-go.
package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
)

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

func (c *Config) withDefaults() {
	if c.ClientID == "" {
		c.ClientID = "eventflood"
	}
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return errors.New("kafka broker address must not be empty")
		}
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Broadcaster produces one record per event and waits for the broker acknowledgement.
// The returned message id is "topic/partition/offset".
type Broadcaster struct {
	topic  string
	client producer
}

func New(cfg Config, opts ...kgo.Opt) (*Broadcaster, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	kopts = append(kopts, opts...)
	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, errors.Wrap(err, "new kafka client")
	}
	return newBroadcaster(cl, cfg.Topic), nil
}

func newBroadcaster(client producer, topic string) *Broadcaster {
	return &Broadcaster{topic: topic, client: client}
}

func (b *Broadcaster) Broadcast(ctx context.Context, body []byte) (string, error) {
	rec, err := b.client.ProduceSync(ctx, &kgo.Record{Topic: b.topic, Value: body}).First()
	if err != nil {
		return "", errors.Wrapf(err, "producing to %s", b.topic)
	}
	return fmt.Sprintf("%s/%d/%d", rec.Topic, rec.Partition, rec.Offset), nil
}

func (b *Broadcaster) Close() error {
	b.client.Close()
	return nil
}
