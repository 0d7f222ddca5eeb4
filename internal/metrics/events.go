package metrics

import (
	"context"

	"github.com/ricesearch/rice-eval/internal/bus"
	"github.com/ricesearch/rice-eval/internal/evaluation"
)

// EventSubscriber subscribes to evaluation events and updates metrics.
type EventSubscriber struct {
	metrics *Metrics
	bus     bus.Bus
}

// NewEventSubscriber creates a new event subscriber.
func NewEventSubscriber(metrics *Metrics, eventBus bus.Bus) *EventSubscriber {
	return &EventSubscriber{
		metrics: metrics,
		bus:     eventBus,
	}
}

// SubscribeToEvents subscribes to all evaluation topics.
func (es *EventSubscriber) SubscribeToEvents(ctx context.Context) error {
	if err := es.bus.Subscribe(ctx, bus.TopicQueryCompleted, es.handleQueryCompleted); err != nil {
		return err
	}
	if err := es.bus.Subscribe(ctx, bus.TopicQueryFailed, es.handleQueryFailed); err != nil {
		return err
	}
	return es.bus.Subscribe(ctx, bus.TopicBatchCompleted, es.handleBatchCompleted)
}

func (es *EventSubscriber) handleQueryCompleted(_ context.Context, event bus.Event) error {
	var rec evaluation.APRecord
	if err := bus.DecodePayload(event, &rec); err != nil {
		return err
	}
	es.metrics.RecordQuery(rec.AP)
	return nil
}

func (es *EventSubscriber) handleQueryFailed(_ context.Context, event bus.Event) error {
	var qe evaluation.QueryError
	if err := bus.DecodePayload(event, &qe); err != nil {
		return err
	}
	es.metrics.RecordQueryFailure(qe.Code)
	return nil
}

func (es *EventSubscriber) handleBatchCompleted(_ context.Context, event bus.Event) error {
	var s bus.BatchSummary
	if err := bus.DecodePayload(event, &s); err != nil {
		return err
	}
	es.metrics.RecordBatch(s.RunID, s.MAP, s.Scored, s.QueryCount, s.DurationMs, s.FinishedAt)
	return nil
}
