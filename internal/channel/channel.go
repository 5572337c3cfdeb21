// Package channel opens the configured broadcast and point-to-point backends.
package channel

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"eventflood/internal/channel/awscfg"
	"eventflood/internal/channel/kafka"
	"eventflood/internal/channel/nats"
	"eventflood/internal/channel/pulsar"
	"eventflood/internal/channel/rabbitmq"
	"eventflood/internal/channel/redis"
	"eventflood/internal/channel/sns"
	"eventflood/internal/channel/sqs"
	"eventflood/internal/config"
	"eventflood/internal/publish"
)

// ErrUnknownKind is returned for a channel kind with no backend on that side.
var ErrUnknownKind = errors.New("unknown channel kind")

// Open connects both channels. When the second one fails the first is closed again.
func Open(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (publish.Broadcaster, publish.QueueSender, error) {
	var loader awsLoader
	broadcast, err := openBroadcast(ctx, cfg, &loader)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s broadcast channel", cfg.Broadcast.Kind)
	}
	queue, err := openQueue(ctx, cfg, &loader)
	if err != nil {
		if cerr := broadcast.Close(); cerr != nil {
			logger.WithError(cerr).Warn("closing broadcast channel")
		}
		return nil, nil, errors.Wrapf(err, "opening %s queue channel", cfg.Queue.Kind)
	}
	logger.WithFields(log.Fields{
		"broadcast": cfg.Broadcast.Kind,
		"queue":     cfg.Queue.Kind,
	}).Info("Channels open")
	return broadcast, queue, nil
}

func openBroadcast(ctx context.Context, cfg *config.Config, loader *awsLoader) (publish.Broadcaster, error) {
	b := cfg.Broadcast
	switch b.Kind {
	case config.KindMemory:
		return publish.NewMemory("broadcast"), nil
	case config.KindSNS:
		awsCfg, err := loader.load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return sns.New(awsCfg, sns.Config{TopicARN: b.Topic})
	case config.KindKafka:
		return kafka.New(kafka.Config{Brokers: b.Brokers, Topic: b.Topic})
	case config.KindPulsar:
		return pulsar.New(pulsar.Config{URL: b.URL, Topic: b.Topic})
	case config.KindNATS:
		return nats.New(nats.Config{URL: b.URL, Subject: b.Topic, JetStream: b.JetStream})
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", b.Kind)
	}
}

func openQueue(ctx context.Context, cfg *config.Config, loader *awsLoader) (publish.QueueSender, error) {
	q := cfg.Queue
	switch q.Kind {
	case config.KindMemory:
		return publish.NewMemory("queue"), nil
	case config.KindSQS:
		awsCfg, err := loader.load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return sqs.New(ctx, awsCfg, sqs.Config{QueueName: q.Name, QueueURL: q.URL})
	case config.KindRabbitMQ:
		return rabbitmq.New(rabbitmq.Config{URL: q.URL, Queue: q.Name, Declare: q.Declare})
	case config.KindRedis:
		return redis.New(redis.Config{Addr: q.Addr, Password: q.Password, DB: q.DB, Stream: q.Name, MaxLen: q.MaxLen})
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", q.Kind)
	}
}

// awsLoader resolves the shared AWS configuration once for both channels.
type awsLoader struct {
	cfg    aws.Config
	loaded bool
}

func (l *awsLoader) load(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	if l.loaded {
		return l.cfg, nil
	}
	cfg, err := awscfg.Load(ctx, awscfg.Config{Region: c.Region, Profile: c.Profile, CredentialsFile: c.CredentialsFile})
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "loading aws configuration")
	}
	l.cfg, l.loaded = cfg, true
	return cfg, nil
}
