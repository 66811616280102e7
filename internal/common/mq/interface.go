package mq

import (
	"context"
	"time"
)

// MessageQueue is the broker abstraction used by publishers and consumers.
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the broker connection is alive
	Ping(ctx context.Context) error

	// Close stops consumers and flushes the producer
	Close() error
}

// Producer defines the interface for publishing messages
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer defines the interface for consuming messages
type Consumer interface {
	// Subscribe registers handler for topic. Consumption begins on Start.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc) error
	SubscribeWithOptions(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	Start() error
	Stop() error
}

// Message is a broker-neutral envelope.
type Message struct {
	ID string `json:"id"`

	// Key selects the partition. Messages sharing a key are delivered in
	// publish order.
	Key string `json:"key,omitempty"`

	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// HandlerFunc processes one message. A non-nil error triggers a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions defines options for subscribing to a topic
type SubscribeOptions struct {
	ConsumerGroup string

	// Concurrency is the number of handler goroutines. Values above 1 give up
	// per-key ordering.
	Concurrency int

	MaxRetries int
	RetryDelay time.Duration

	// DeadLetterTopic receives messages that exhausted their retries
	DeadLetterTopic string
}

// SetDefaults sets default values for subscribe options
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency == 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a new message with the given body
func NewMessage(body []byte) *Message {
	return &Message{
		Body:       body,
		Headers:    make(map[string]string),
		Timestamp:  time.Now(),
		MaxRetries: 3,
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}
