// Package sns broadcasts events to an AWS SNS topic.
package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pkg/errors"
)

type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	TopicARN string
}

func (c Config) Validate() error {
	if c.TopicARN == "" {
		return errors.New("sns topic arn is required")
	}
	return nil
}

// Broadcaster publishes the serialized event as the SNS Message field. No attributes are attached.
type Broadcaster struct {
	client   publishAPI
	topicARN string
}

func New(awsCfg aws.Config, cfg Config) (*Broadcaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newBroadcaster(sns.NewFromConfig(awsCfg), cfg), nil
}

func newBroadcaster(client publishAPI, cfg Config) *Broadcaster {
	return &Broadcaster{client: client, topicARN: cfg.TopicARN}
}

func (b *Broadcaster) Broadcast(ctx context.Context, body []byte) (string, error) {
	out, err := b.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(b.topicARN),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return "", errors.Wrapf(err, "publishing to %s", b.topicARN)
	}
	return aws.ToString(out.MessageId), nil
}

func (b *Broadcaster) Close() error {
	return nil
}
