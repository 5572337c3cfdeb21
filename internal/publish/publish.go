// Package publish delivers each event through two independent channels: a broadcast topic and a
// point-to-point queue. Delivery is best effort. One channel succeeding while the other fails is an
// expected outcome for a load generator, not an error of the publisher itself.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"eventflood/internal/core"
	"eventflood/internal/corpus"
	"eventflood/internal/timestamp"
)

// Attribute keys attached to point-to-point deliveries.
const (
	AttrAuthor    = "Author"
	AttrTimestamp = "Timestamp"
)

// Attributes are string-valued metadata sent alongside a point-to-point payload.
type Attributes map[string]string

// Broadcaster publishes a payload to a pub/sub topic and returns the broker's message id.
type Broadcaster interface {
	Broadcast(ctx context.Context, body []byte) (string, error)
	Close() error
}

// QueueSender places a payload with attributes on a queue and returns the broker's message id.
type QueueSender interface {
	Enqueue(ctx context.Context, body []byte, attrs Attributes) (string, error)
	Close() error
}

// ChannelSendError reports a failed delivery on one channel.
type ChannelSendError struct {
	Channel core.Channel
	Err     error
}

func (e *ChannelSendError) Error() string {
	return fmt.Sprintf("%s send failed: %v", e.Channel, e.Err)
}

func (e *ChannelSendError) Unwrap() error {
	return e.Err
}

// ChannelResult is the outcome of one channel's delivery attempt.
type ChannelResult struct {
	Channel   core.Channel
	MessageID string
	Duration  time.Duration
	Err       error
}

// OK reports whether the channel accepted the message.
func (r ChannelResult) OK() bool {
	return r.Err == nil
}

// SendResult holds both channel outcomes of a single Send.
type SendResult struct {
	Broadcast ChannelResult
	Queue     ChannelResult
}

// Err combines the channel failures, or returns nil when both channels succeeded.
func (r SendResult) Err() error {
	var result *multierror.Error
	for _, cr := range []ChannelResult{r.Broadcast, r.Queue} {
		if cr.Err != nil {
			result = multierror.Append(result, &ChannelSendError{Channel: cr.Channel, Err: cr.Err})
		}
	}
	return result.ErrorOrNil()
}

// Deliveries converts the result into collector deliveries for the event at slot index.
func (r SendResult) Deliveries(index int, at time.Time) []core.Delivery {
	out := make([]core.Delivery, 0, 2)
	for _, cr := range []ChannelResult{r.Broadcast, r.Queue} {
		d := core.Delivery{
			Index:     index,
			Channel:   cr.Channel,
			Timestamp: at,
			Duration:  cr.Duration,
			Success:   cr.OK(),
			MessageID: cr.MessageID,
		}
		if cr.Err != nil {
			d.Error = cr.Err.Error()
		}
		out = append(out, d)
	}
	return out
}

// Publisher fans an event out to both channels.
type Publisher struct {
	broadcast Broadcaster
	queue     QueueSender
	clock     core.Clock
	log       log.FieldLogger
}

// NewPublisher creates a Publisher. A nil clock uses the real clock.
func NewPublisher(broadcast Broadcaster, queue QueueSender, clock core.Clock, logger log.FieldLogger) *Publisher {
	if clock == nil {
		clock = core.RealClock{}
	}
	return &Publisher{
		broadcast: broadcast,
		queue:     queue,
		clock:     clock,
		log:       logger,
	}
}

// Send delivers the event on the broadcast channel, then on the point-to-point channel.
// The second channel is always attempted regardless of the first's outcome. Failures are logged
// here and returned in the result; Send never aborts the caller.
func (p *Publisher) Send(ctx context.Context, event corpus.Event) SendResult {
	result := SendResult{
		Broadcast: ChannelResult{Channel: core.ChannelBroadcast},
		Queue:     ChannelResult{Channel: core.ChannelQueue},
	}

	body, err := event.Marshal()
	if err != nil {
		err = errors.Wrap(err, "serializing event")
		result.Broadcast.Err = err
		result.Queue.Err = err
		return result
	}

	start := p.clock.Now()
	result.Broadcast.MessageID, result.Broadcast.Err = p.broadcast.Broadcast(ctx, body)
	result.Broadcast.Duration = p.clock.Since(start)
	if result.Broadcast.Err != nil {
		p.log.WithError(result.Broadcast.Err).WithField("channel", core.ChannelBroadcast).Error("broadcast delivery failed")
	}

	// The timestamp is taken per attempt: it marks when this delivery happened, not when the event was built.
	start = p.clock.Now()
	attrs := Attributes{
		AttrAuthor:    event.Author,
		AttrTimestamp: timestamp.Format(start),
	}
	result.Queue.MessageID, result.Queue.Err = p.queue.Enqueue(ctx, body, attrs)
	result.Queue.Duration = p.clock.Since(start)
	if result.Queue.Err != nil {
		p.log.WithError(result.Queue.Err).WithField("channel", core.ChannelQueue).Error("queue delivery failed")
	}

	return result
}

// Close closes both channels, returning every close error.
func (p *Publisher) Close() error {
	var result *multierror.Error
	if err := p.broadcast.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "closing broadcast channel"))
	}
	if err := p.queue.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "closing queue channel"))
	}
	return result.ErrorOrNil()
}
