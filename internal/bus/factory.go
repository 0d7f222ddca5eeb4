package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration. A non-empty
// cfg.EventLog wraps the bus in a JournaledBus.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		log = logger.Default()
	}

	var b Bus
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		b = NewMemoryBus(log)

	case "none":
		b = NopBus{}

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "rice-eval"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "rice-eval-bus",
			Logger:        log,
		})
		if err != nil {
			return nil, err
		}
		b = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog != "" {
		journal, err := OpenJournal(cfg.EventLog)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b = NewJournaledBus(b, journal, log)
	}

	return b, nil
}

// NopBus drops every event.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, Event) error { return nil }

func (NopBus) Subscribe(context.Context, string, Handler) error { return nil }

func (NopBus) Close() error { return nil }
