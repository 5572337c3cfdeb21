// Package sqs sends events to an AWS SQS queue with string message attributes.
package sqs

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/pkg/errors"

	"eventflood/internal/publish"
)

type sqsAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Config struct {
	// QueueName is resolved to a URL once at startup. QueueURL skips the lookup.
	QueueName string
	QueueURL  string
}

func (c Config) Validate() error {
	if c.QueueName == "" && c.QueueURL == "" {
		return errors.New("sqs queue name or url is required")
	}
	return nil
}

// Sender puts the serialized event in the message body and each attribute in MessageAttributes.
type Sender struct {
	client   sqsAPI
	queueURL string
}

func New(ctx context.Context, awsCfg aws.Config, cfg Config) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newSender(ctx, sqs.NewFromConfig(awsCfg), cfg)
}

func newSender(ctx context.Context, client sqsAPI, cfg Config) (*Sender, error) {
	url := cfg.QueueURL
	if url == "" {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(cfg.QueueName)})
		if err != nil {
			return nil, errors.Wrapf(err, "resolving url of queue %s", cfg.QueueName)
		}
		url = aws.ToString(out.QueueUrl)
	}
	return &Sender{client: client, queueURL: url}, nil
}

func (s *Sender) Enqueue(ctx context.Context, body []byte, attrs publish.Attributes) (string, error) {
	msgAttrs := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		msgAttrs[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: msgAttrs,
	})
	if err != nil {
		return "", errors.Wrapf(err, "sending to %s", s.queueURL)
	}
	return aws.ToString(out.MessageId), nil
}

func (s *Sender) Close() error {
	return nil
}
