// Package memory records state-change notifications in process memory.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded publish, kept both as the original value and as the JSON sent on the wire.
type Message struct {
	ID      string
	Topic   string
	Payload any
	Data    []byte
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLimit keeps only the most recent n messages. n <= 0 keeps everything.
func WithLimit(n int) Option {
	return func(p *Publisher) {
		p.limit = n
	}
}

// Publisher is the default state publisher. It never leaves the process.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	seq      int
	limit    int
	err      error
}

// New returns an empty Publisher. Without WithLimit it retains every message.
func New(opts ...Option) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FailWith makes subsequent publishes return err; nil restores normal behavior.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish encodes payload and records it, evicting the oldest message once
// the limit is reached.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	if p.limit > 0 && len(p.messages) >= p.limit {
		n := copy(p.messages, p.messages[len(p.messages)-p.limit+1:])
		clear(p.messages[n:])
		p.messages = p.messages[:n]
	}
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Payload: payload, Data: data})
	return id, nil
}

// Messages returns a copy of the recorded publishes, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
