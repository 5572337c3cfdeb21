// Package corpus builds the synthetic event stream and the order it is sent in.
package corpus

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidConfiguration is returned when the corpus cannot be built from the given parameters.
var ErrInvalidConfiguration = errors.New("invalid corpus configuration")

const (
	DefaultGreeting = "hello"
	DefaultMessage  = "tbd"
)

// Event is one synthetic business event. Immutable once built.
type Event struct {
	ID       int    `json:"id"`
	Greeting string `json:"greeting"`
	Message  string `json:"message"`
	Author   string `json:"author"`
}

// Marshal returns the JSON payload sent on every channel.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Corpus is the ordered event sequence plus the shuffled order it is sent in.
// Order is a permutation of [0, len(Events)).
type Corpus struct {
	Events []Event
	Order  []int
}

// Len returns the number of events in the corpus.
func (c *Corpus) Len() int {
	return len(c.Events)
}

// At returns the event sent at position pos of the send order, and its corpus slot.
func (c *Corpus) At(pos int) (int, Event) {
	idx := c.Order[pos]
	return idx, c.Events[idx]
}

type options struct {
	rng      *rand.Rand
	greeting string
	message  string
}

// Option customises corpus generation.
type Option func(*options)

// WithSeed makes the send order reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand uses the given source for shuffling.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithPlaceholders overrides the constant greeting and message fields.
func WithPlaceholders(greeting, message string) Option {
	return func(o *options) {
		o.greeting = greeting
		o.message = message
	}
}

// Build creates n events with id and author assigned round-robin from ids and authors,
// and a uniformly random send order. It has no side effects.
func Build(n int, ids []int, authors []string, opts ...Option) (*Corpus, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "count must be positive, got %d", n)
	}
	if len(ids) == 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "ids must not be empty")
	}
	if len(authors) == 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "authors must not be empty")
	}

	o := options{greeting: DefaultGreeting, message: DefaultMessage}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	events := make([]Event, n)
	for i := range events {
		events[i] = Event{
			ID:       ids[i%len(ids)],
			Greeting: o.greeting,
			Message:  o.message,
			Author:   authors[i%len(authors)],
		}
	}

	return &Corpus{
		Events: events,
		Order:  o.rng.Perm(n),
	}, nil
}
