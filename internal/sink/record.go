// Package sink decodes the event envelopes delivered to the downstream record writers and persists
// them as latency records.
package sink

// Event types recorded by the writers.
const (
	EventTypeQueue     = "sqs"
	EventTypeBroadcast = "sns"
)

// Record is one processed event. EventTimestamp is the producer's send time, CreatedAtTimestamp the
// time the record was written. Both are timestamp.Layout strings once persisted.
type Record struct {
	ID                 int64
	PayloadID          int
	EventType          string
	CustomMessage      string
	Author             string
	EventTimestamp     string
	CreatedAtTimestamp string
}
