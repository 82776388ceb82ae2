// Package memory holds published notifications in process, for dry runs and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// PublishedMessage captures one publish call. Data is the JSON body a real
// broker would have received.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
	Data    []byte
}

// Publisher records messages instead of sending them. Payloads go through
// the same JSON encoding as the Pub/Sub publisher, so an unencodable payload
// fails here too.
type Publisher struct {
	logger *zap.Logger

	mu       sync.Mutex
	messages []PublishedMessage
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger logs every recorded message at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns an empty Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish records the message and returns a sequential ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", errors.New("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload, Data: data})
	p.mu.Unlock()

	p.logger.Debug("message recorded", zap.String("topic", topic), zap.String("id", id), zap.ByteString("data", data))
	return id, nil
}

// Len returns how many messages were published.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// Messages returns a copy of the recorded messages in publish order.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.messages...)
}

// Topic returns the messages recorded for one topic.
func (p *Publisher) Topic(topic string) []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
