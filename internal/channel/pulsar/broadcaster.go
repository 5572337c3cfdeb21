// Package pulsar broadcasts events to an Apache Pulsar topic.
package pulsar

import (
	"context"
	"encoding/hex"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
)

type Config struct {
	URL   string
	Topic string
}

func (c *Config) withDefaults() {
	if c.URL == "" {
		c.URL = "pulsar://localhost:6650"
	}
}

func (c Config) Validate() error {
	if c.Topic == "" {
		return errors.New("pulsar topic is required")
	}
	return nil
}

type producer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

// Broadcaster sends synchronously; the message id is the hex encoding of the serialized pulsar id.
type Broadcaster struct {
	client   pulsar.Client
	producer producer
	topic    string
}

func New(cfg Config) (*Broadcaster, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: cfg.URL})
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to pulsar at %s", cfg.URL)
	}
	p, err := client.CreateProducer(pulsar.ProducerOptions{Topic: cfg.Topic})
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "creating producer for %s", cfg.Topic)
	}
	b := newBroadcaster(p, cfg.Topic)
	b.client = client
	return b, nil
}

func newBroadcaster(p producer, topic string) *Broadcaster {
	return &Broadcaster{producer: p, topic: topic}
}

func (b *Broadcaster) Broadcast(ctx context.Context, body []byte) (string, error) {
	id, err := b.producer.Send(ctx, &pulsar.ProducerMessage{Payload: body})
	if err != nil {
		return "", errors.Wrapf(err, "sending to %s", b.topic)
	}
	return hex.EncodeToString(id.Serialize()), nil
}

func (b *Broadcaster) Close() error {
	b.producer.Close()
	if b.client != nil {
		b.client.Close()
	}
	return nil
}
