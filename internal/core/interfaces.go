// Package core defines the fundamental interfaces and types shared by the producer.
package core

import "time"

// Channel names a delivery path an event is sent through.
type Channel string

const (
	// ChannelBroadcast is the pub/sub path: one message may fan out to many subscribers.
	ChannelBroadcast Channel = "broadcast"
	// ChannelQueue is the point-to-point path: one message is processed by one consumer.
	ChannelQueue Channel = "queue"
)

// Delivery represents a single delivery attempt of one event through one channel.
type Delivery struct {
	Index     int // corpus slot the event came from
	Channel   Channel
	Timestamp time.Time
	Duration  time.Duration
	Success   bool
	Error     string
	MessageID string
}

// Reporter is the interface the producer uses to send deliveries to the Collector.
type Reporter interface {
	Report(Delivery)
}

// NullReporter discards all deliveries.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Delivery) {}
