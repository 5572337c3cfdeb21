// Package nats broadcasts events on a NATS subject, optionally through JetStream.
package nats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Config struct {
	URL     string
	Subject string
	// JetStream waits for a stream acknowledgement and reports "stream:sequence" as the message id.
	JetStream bool
}

func (c *Config) withDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
}

func (c Config) Validate() error {
	if c.Subject == "" {
		return errors.New("nats subject is required")
	}
	return nil
}

type Broadcaster struct {
	subject string
	conn    *nats.Conn
	publish func(ctx context.Context, msg *nats.Msg) (string, error)
}

func New(cfg Config) (*Broadcaster, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("eventflood"))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to nats at %s", cfg.URL)
	}
	b := &Broadcaster{subject: cfg.Subject, conn: nc, publish: corePublish(nc)}
	if cfg.JetStream {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, errors.Wrap(err, "opening jetstream context")
		}
		b.publish = jetStreamPublish(js)
	}
	return b, nil
}

func corePublish(nc *nats.Conn) func(context.Context, *nats.Msg) (string, error) {
	return func(_ context.Context, msg *nats.Msg) (string, error) {
		if err := nc.PublishMsg(msg); err != nil {
			return "", err
		}
		return msg.Header.Get(nats.MsgIdHdr), nil
	}
}

func jetStreamPublish(js nats.JetStreamContext) func(context.Context, *nats.Msg) (string, error) {
	return func(ctx context.Context, msg *nats.Msg) (string, error) {
		ack, err := js.PublishMsg(msg, nats.Context(ctx))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence), nil
	}
}

func (b *Broadcaster) Broadcast(ctx context.Context, body []byte) (string, error) {
	msg := nats.NewMsg(b.subject)
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	id, err := b.publish(ctx, msg)
	if err != nil {
		return "", errors.Wrapf(err, "publishing to %s", b.subject)
	}
	return id, nil
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}
