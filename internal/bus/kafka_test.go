package bus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

func TestKafkaConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  KafkaConfig
		wantErr bool
	}{
		{
			name:    "empty brokers",
			config:  KafkaConfig{ConsumerGroup: "test-group"},
			wantErr: true,
		},
		{
			name:    "empty consumer group",
			config:  KafkaConfig{Brokers: []string{"localhost:9092"}},
			wantErr: true,
		},
		{
			name: "invalid version",
			config: KafkaConfig{
				Brokers:       []string{"localhost:9092"},
				ConsumerGroup: "test-group",
				Version:       "not-a-version",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKafkaBus(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewKafkaBus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.CodeOf(err) != errors.CodeValidation {
				t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.CodeValidation)
			}
		})
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single broker", "localhost:9092", []string{"localhost:9092"}},
		{"multiple brokers", "broker1:9092,broker2:9092", []string{"broker1:9092", "broker2:9092"}},
		{"with whitespace", "broker1:9092 , broker2:9092 ,", []string{"broker1:9092", "broker2:9092"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKafkaBrokers(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKafkaBrokers() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseKafkaBrokers()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewProducerMessage(t *testing.T) {
	event := Event{ID: "e1", Type: TopicQueryCompleted, CorrelationID: "run-1", Payload: map[string]any{"ap": 0.5}}

	msg, err := newProducerMessage(TopicQueryCompleted, event)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Topic != TopicQueryCompleted {
		t.Errorf("topic = %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "run-1" {
		t.Errorf("key = %s, want correlation id", key)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[1].Value) != "run-1" {
		t.Errorf("headers = %+v", msg.Headers)
	}

	value, _ := msg.Value.Encode()
	var decoded Event
	if err := json.Unmarshal(value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != "e1" || decoded.CorrelationID != "run-1" {
		t.Errorf("decoded = %+v", decoded)
	}

	msg, _ = newProducerMessage(TopicQueryCompleted, Event{ID: "e2"})
	key, _ = msg.Key.Encode()
	if string(key) != "e2" || len(msg.Headers) != 1 {
		t.Errorf("without correlation id: key=%s headers=%d", key, len(msg.Headers))
	}
}

func TestKafkaBus_Lifecycle(t *testing.T) {
	b, err := NewKafkaBus(KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "rice-eval-test",
		Logger:        logger.Discard(),
	})
	if err != nil {
		t.Skip("Kafka not available:", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := b.Publish(ctx, TopicBatchCompleted, Event{ID: "x"}); err == nil {
		t.Error("expected error publishing after close")
	}
	if err := b.Subscribe(ctx, TopicBatchCompleted, func(context.Context, Event) error { return nil }); err == nil {
		t.Error("expected error subscribing after close")
	}
}

var _ Bus = (*KafkaBus)(nil)
