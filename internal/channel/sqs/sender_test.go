package sqs

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventflood/internal/publish"
)

type fakeSQS struct {
	lookups []string
	sent    []*sqs.SendMessageInput
	sendErr error
}

func (f *fakeSQS) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	f.lookups = append(f.lookups, aws.ToString(in.QueueName))
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/123/" + aws.ToString(in.QueueName))}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-msg-1")}, nil
}

func TestNewSender_ResolvesQueueURL(t *testing.T) {
	fake := &fakeSQS{}
	s, err := newSender(context.Background(), fake, Config{QueueName: "argo-events"})

	require.NoError(t, err)
	assert.Equal(t, []string{"argo-events"}, fake.lookups)
	assert.Equal(t, "https://sqs.local/123/argo-events", s.queueURL)
}

func TestNewSender_ExplicitURLSkipsLookup(t *testing.T) {
	fake := &fakeSQS{}
	s, err := newSender(context.Background(), fake, Config{QueueURL: "https://sqs.local/q"})

	require.NoError(t, err)
	assert.Empty(t, fake.lookups)
	assert.Equal(t, "https://sqs.local/q", s.queueURL)
}

func TestEnqueue_AttributesAsStrings(t *testing.T) {
	fake := &fakeSQS{}
	s, err := newSender(context.Background(), fake, Config{QueueURL: "https://sqs.local/q"})
	require.NoError(t, err)

	id, err := s.Enqueue(context.Background(), []byte(`{"id":5}`), publish.Attributes{
		publish.AttrAuthor:    "Ankur",
		publish.AttrTimestamp: "2024-01-01 00:00:00.000000",
	})

	require.NoError(t, err)
	assert.Equal(t, "sqs-msg-1", id)
	require.Len(t, fake.sent, 1)
	in := fake.sent[0]
	assert.Equal(t, `{"id":5}`, aws.ToString(in.MessageBody))
	require.Len(t, in.MessageAttributes, 2)
	assert.Equal(t, "String", aws.ToString(in.MessageAttributes["Author"].DataType))
	assert.Equal(t, "Ankur", aws.ToString(in.MessageAttributes["Author"].StringValue))
	assert.Equal(t, "2024-01-01 00:00:00.000000", aws.ToString(in.MessageAttributes["Timestamp"].StringValue))
}

func TestEnqueue_Error(t *testing.T) {
	fake := &fakeSQS{sendErr: errors.New("access denied")}
	s, err := newSender(context.Background(), fake, Config{QueueURL: "q"})
	require.NoError(t, err)

	_, err = s.Enqueue(context.Background(), []byte("x"), nil)
	assert.ErrorContains(t, err, "access denied")
}
