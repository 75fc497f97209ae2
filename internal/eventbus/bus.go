// Package eventbus carries typed domain events over Redis Streams.
//
// Each topic is one stream. Consumers join a consumer group per service so
// that delivery is ordered per stream and at-least-once: a message is only
// acknowledged after its handler succeeded or it was dead-lettered.
package eventbus

import (
	"context"
	"errors"
)

// ErrRetriesExhausted is returned by a consumer when a handler kept failing
// and dead-lettering is disabled. It stops the consumer.
var ErrRetriesExhausted = errors.New("eventbus: retries exhausted")

// Event is one message read from, or published to, a topic.
type Event struct {
	// ID is the stream entry id; empty for events not yet published.
	ID      string
	Topic   string
	Type    string
	Key     string
	Payload []byte
}

// Publisher publishes JSON-encoded payloads.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, payload any) error
}

// Handler processes one event. Returning an error schedules a retry.
type Handler func(ctx context.Context, ev Event) error

// Subscription binds a handler to a topic for one consumer group member.
type Subscription struct {
	Topic    string
	Group    string
	Consumer string
	Handler  Handler
}
