// Package bus carries evaluation events to in-process subscribers or Kafka.
package bus

import (
	"context"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type, equal to the topic it was published on.
	Type string `json:"type"`

	// Source is the service that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links the events of one evaluation run.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Evaluation topics.
const (
	TopicQueryCompleted = "evaluation.query.completed"
	TopicQueryFailed    = "evaluation.query.failed"
	TopicBatchCompleted = "evaluation.batch.completed"
)

// Topics lists every topic the evaluator publishes to.
var Topics = []string{TopicQueryCompleted, TopicQueryFailed, TopicBatchCompleted}
