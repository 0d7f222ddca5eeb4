package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// EventSource is stamped on every event the Publisher emits.
const EventSource = "rice-eval"

// BatchSummary is the payload of TopicBatchCompleted.
type BatchSummary struct {
	RunID       string    `json:"run_id"`
	MAP         float64   `json:"map"`
	QueryCount  int       `json:"query_count"`
	Scored      int       `json:"scored"`
	FailedCount int       `json:"failed_count"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// Publisher turns evaluator callbacks into bus events. Publish failures are
// logged and never reach the evaluator.
type Publisher struct {
	bus Bus
	log *logger.Logger
}

var _ evaluation.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher on b.
func NewPublisher(b Bus, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Default()
	}
	return &Publisher{bus: b, log: log}
}

// QueryEvaluated publishes the record on TopicQueryCompleted.
func (p *Publisher) QueryEvaluated(ctx context.Context, runID string, rec evaluation.APRecord) {
	p.publish(ctx, TopicQueryCompleted, runID, rec)
}

// QueryFailed publishes the failure on TopicQueryFailed.
func (p *Publisher) QueryFailed(ctx context.Context, runID string, qe evaluation.QueryError) {
	p.publish(ctx, TopicQueryFailed, runID, qe)
}

// BatchEvaluated publishes a BatchSummary on TopicBatchCompleted.
func (p *Publisher) BatchEvaluated(ctx context.Context, r *evaluation.Report) {
	p.publish(ctx, TopicBatchCompleted, r.RunID, BatchSummary{
		RunID:       r.RunID,
		MAP:         r.MAP,
		QueryCount:  r.QueryCount,
		Scored:      len(r.PerQuery),
		FailedCount: r.FailedCount,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		DurationMs:  r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic, runID string, payload any) {
	event := Event{
		ID:            uuid.NewString(),
		Type:          topic,
		Source:        EventSource,
		Timestamp:     time.Now().UnixMilli(),
		CorrelationID: runID,
		Payload:       payload,
	}
	if err := p.bus.Publish(ctx, topic, event); err != nil {
		p.log.WithError(err).Warn("Failed to publish evaluation event", "topic", topic, "run_id", runID)
	}
}

// DecodePayload decodes event.Payload into v. Payloads that crossed Kafka
// arrive as generic JSON values, local ones keep their Go type.
func DecodePayload(event Event, v any) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
