package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Message is a delivery recorded by a Memory channel.
type Message struct {
	ID    string
	Body  []byte
	Attrs Attributes
}

// Memory is an in-process channel that records every message. It backs dry runs ("memory" kind)
// and tests. Setting Err makes every delivery fail with it.
type Memory struct {
	Name string
	Err  error

	mu       sync.Mutex
	messages []Message
	calls    int
	closed   bool
}

// NewMemory creates a named in-memory channel.
func NewMemory(name string) *Memory {
	return &Memory{Name: name}
}

func (m *Memory) Broadcast(ctx context.Context, body []byte) (string, error) {
	return m.record(ctx, body, nil)
}

func (m *Memory) Enqueue(ctx context.Context, body []byte, attrs Attributes) (string, error) {
	return m.record(ctx, body, attrs)
}

func (m *Memory) record(ctx context.Context, body []byte, attrs Attributes) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.closed {
		return "", errors.Errorf("%s: channel closed", m.Name)
	}
	copied := make(Attributes, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	id := fmt.Sprintf("%s-%d", m.Name, len(m.messages)+1)
	m.messages = append(m.messages, Message{ID: id, Body: append([]byte(nil), body...), Attrs: copied})
	return id, nil
}

// Messages returns a copy of the recorded messages.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Calls returns how many deliveries were attempted, failed ones included.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
