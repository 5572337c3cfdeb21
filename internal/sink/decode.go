package sink

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrMalformedEnvelope is wrapped by every decode failure.
var ErrMalformedEnvelope = errors.New("malformed event envelope")

// DecodeQueueEvent reads the envelope handed to the queue-triggered job:
// {"context":{"id":..,"type":..},"data":"<base64 json>"} where the decoded data holds
// body.{id,author,message} and messageAttributes.Timestamp.StringValue.
func DecodeQueueEvent(raw []byte) (Record, error) {
	data, err := envelopeData(gjson.ParseBytes(raw), raw)
	if err != nil {
		return Record{}, err
	}

	body := data.Get("body")
	// the queue body may arrive as the JSON string the producer sent
	if body.Type == gjson.String {
		if !gjson.Valid(body.Str) {
			return Record{}, errors.Wrap(ErrMalformedEnvelope, "body is not json")
		}
		body = gjson.Parse(body.Str)
	}

	rec := Record{EventType: EventTypeQueue}
	if err := readPayload(body, &rec); err != nil {
		return Record{}, err
	}
	ts := data.Get("messageAttributes.Timestamp.StringValue")
	if !ts.Exists() {
		return Record{}, errors.Wrap(ErrMalformedEnvelope, "missing Timestamp attribute")
	}
	rec.EventTimestamp = ts.String()
	return rec, nil
}

// DecodeBroadcastEvent reads the request body posted by the broadcast trigger: {"data":"<envelope json>"}
// with the same envelope as DecodeQueueEvent, whose decoded data holds id, author, message and an
// RFC3339 Timestamp. The event type comes from context.type.
func DecodeBroadcastEvent(raw []byte) (Record, error) {
	outer := gjson.ParseBytes(raw)
	if !gjson.ValidBytes(raw) {
		return Record{}, errors.Wrap(ErrMalformedEnvelope, "request body is not json")
	}
	inner := outer.Get("data")
	if inner.Type != gjson.String || !gjson.Valid(inner.Str) {
		return Record{}, errors.Wrap(ErrMalformedEnvelope, "data is not a json string")
	}
	envelope := gjson.Parse(inner.Str)
	data, err := envelopeData(envelope, []byte(inner.Str))
	if err != nil {
		return Record{}, err
	}

	rec := Record{EventType: envelope.Get("context.type").String()}
	if rec.EventType == "" {
		rec.EventType = EventTypeBroadcast
	}
	if err := readPayload(data, &rec); err != nil {
		return Record{}, err
	}
	ts := data.Get("Timestamp")
	if !ts.Exists() {
		return Record{}, errors.Wrap(ErrMalformedEnvelope, "missing Timestamp")
	}
	rec.EventTimestamp = ts.String()
	return rec, nil
}

func envelopeData(envelope gjson.Result, raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, errors.Wrap(ErrMalformedEnvelope, "envelope is not json")
	}
	if !envelope.Get("context.id").Exists() {
		return gjson.Result{}, errors.Wrap(ErrMalformedEnvelope, "missing context.id")
	}
	encoded := envelope.Get("data")
	if encoded.Type != gjson.String {
		return gjson.Result{}, errors.Wrap(ErrMalformedEnvelope, "missing data")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded.Str)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(ErrMalformedEnvelope, "data is not base64: %v", err)
	}
	if !gjson.ValidBytes(decoded) {
		return gjson.Result{}, errors.Wrap(ErrMalformedEnvelope, "decoded data is not json")
	}
	return gjson.ParseBytes(decoded), nil
}

func readPayload(payload gjson.Result, rec *Record) error {
	id := payload.Get("id")
	if id.Type != gjson.Number {
		return errors.Wrap(ErrMalformedEnvelope, "missing numeric id")
	}
	rec.PayloadID = int(id.Int())
	rec.Author = payload.Get("author").String()
	rec.CustomMessage = payload.Get("message").String()
	return nil
}
