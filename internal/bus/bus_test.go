package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	err := bus.Subscribe(context.Background(), TopicQueryCompleted, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := bus.Publish(context.Background(), TopicQueryCompleted, Event{
			ID:   "test-" + string(rune('0'+i)),
			Type: TopicQueryCompleted,
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	waitFor(t, &wg)

	if got := received.Load(); got != 3 {
		t.Errorf("Received %d events, want 3", got)
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var count1, count2 atomic.Int32
	var wg sync.WaitGroup

	bus.Subscribe(context.Background(), TopicBatchCompleted, func(ctx context.Context, event Event) error {
		count1.Add(1)
		wg.Done()
		return nil
	})
	bus.Subscribe(context.Background(), TopicBatchCompleted, func(ctx context.Context, event Event) error {
		count2.Add(1)
		wg.Done()
		return nil
	})

	wg.Add(2)
	bus.Publish(context.Background(), TopicBatchCompleted, Event{ID: "1"})
	waitFor(t, &wg)

	if count1.Load() != 1 || count2.Load() != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", count1.Load(), count2.Load())
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	if err := bus.Publish(context.Background(), "nobody.listens", Event{ID: "1"}); err != nil {
		t.Errorf("Publish() with no subscribers error = %v", err)
	}
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())

	var finished atomic.Bool
	bus.Subscribe(context.Background(), TopicQueryFailed, func(ctx context.Context, event Event) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	bus.Publish(context.Background(), TopicQueryFailed, Event{ID: "1"})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !finished.Load() {
		t.Error("Close() should drain in-flight handlers")
	}

	if err := bus.Publish(context.Background(), TopicQueryFailed, Event{}); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if err := bus.Subscribe(context.Background(), TopicQueryFailed, nil); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryBus_Concurrent(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup
	bus.Subscribe(context.Background(), TopicQueryCompleted, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	const n = 100
	wg.Add(n)
	var pubWg sync.WaitGroup
	for i := 0; i < n; i++ {
		pubWg.Add(1)
		go func() {
			defer pubWg.Done()
			bus.Publish(context.Background(), TopicQueryCompleted, Event{})
		}()
	}
	pubWg.Wait()
	waitFor(t, &wg)

	if received.Load() != n {
		t.Errorf("received %d, want %d", received.Load(), n)
	}
}

type recordingBus struct {
	NopBus
	mu     sync.Mutex
	events map[string][]Event
}

func (b *recordingBus) Publish(_ context.Context, topic string, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events == nil {
		b.events = make(map[string][]Event)
	}
	b.events[topic] = append(b.events[topic], e)
	return nil
}

func TestPublisher_WithEvaluator(t *testing.T) {
	rb := &recordingBus{}
	store := staticStore{"q1": {"a": "1"}}

	e, err := evaluation.NewEvaluator(evaluation.Config{
		Annotations: store,
		Workers:     2,
		Publisher:   NewPublisher(rb, logger.Discard()),
		Logger:      logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := e.Evaluate(context.Background(), []evaluation.Query{
		{ID: "q1", Ranked: []string{"a"}},
		{ID: "q2", Ranked: []string{"b"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(rb.events[TopicQueryCompleted]) != 1 || len(rb.events[TopicQueryFailed]) != 1 {
		t.Fatalf("events = %v", rb.events)
	}
	batch := rb.events[TopicBatchCompleted]
	if len(batch) != 1 {
		t.Fatalf("batch events = %d", len(batch))
	}

	ev := batch[0]
	if ev.Source != EventSource || ev.CorrelationID != report.RunID || ev.ID == "" || ev.Type != TopicBatchCompleted {
		t.Errorf("event envelope = %+v", ev)
	}

	var summary BatchSummary
	if err := DecodePayload(ev, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.MAP != 1 || summary.Scored != 1 || summary.FailedCount != 1 {
		t.Errorf("summary = %+v", summary)
	}

	var rec evaluation.APRecord
	if err := DecodePayload(rb.events[TopicQueryCompleted][0], &rec); err != nil {
		t.Fatal(err)
	}
	if rec.QueryID != "q1" || rec.AP != 1 {
		t.Errorf("record = %+v", rec)
	}
}

type staticStore map[string]evaluation.RelevanceMap

func (s staticStore) GetRelevance(_ context.Context, id string) (evaluation.RelevanceMap, error) {
	return s[id], nil
}

type publishCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (p *publishCounter) RecordBusPublish(topic string, _ int64, _ error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[topic]++
}

func TestInstrumentedBus(t *testing.T) {
	m := &publishCounter{}
	b := NewInstrumentedBus(NopBus{}, m)
	_ = b.Publish(context.Background(), TopicBatchCompleted, Event{})
	_ = b.Publish(context.Background(), TopicBatchCompleted, Event{})
	if m.calls[TopicBatchCompleted] != 2 {
		t.Errorf("recorded %d publishes, want 2", m.calls[TopicBatchCompleted])
	}
	if err := b.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewBus(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BusConfig
		wantErr bool
	}{
		{"memory", config.BusConfig{Type: "memory"}, false},
		{"default", config.BusConfig{}, false},
		{"none", config.BusConfig{Type: "none"}, false},
		{"kafka without brokers", config.BusConfig{Type: "kafka"}, true},
		{"unknown", config.BusConfig{Type: "nats"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBus(tt.cfg, logger.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if b != nil {
				b.Close()
			}
		})
	}
}
