package bus

import (
	"context"

	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// JournaledBus records every published event in a Journal before handing it
// to the inner bus.
type JournaledBus struct {
	inner   Bus
	journal *Journal
	log     *logger.Logger
}

// NewJournaledBus wraps inner with journal.
func NewJournaledBus(inner Bus, journal *Journal, log *logger.Logger) *JournaledBus {
	if log == nil {
		log = logger.Default()
	}
	return &JournaledBus{inner: inner, journal: journal, log: log}
}

// Publish journals the event and then delegates to the inner bus. Journal
// failures are logged and do not block publishing.
func (b *JournaledBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := b.journal.Append(topic, event); err != nil {
		b.log.WithError(err).Warn("Failed to journal event", "topic", topic, "path", b.journal.Path())
	}
	return b.inner.Publish(ctx, topic, event)
}

// Subscribe delegates to the inner bus.
func (b *JournaledBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Close closes the inner bus, then the journal.
func (b *JournaledBus) Close() error {
	err := b.inner.Close()
	if jerr := b.journal.Close(); jerr != nil {
		b.log.WithError(jerr).Warn("Failed to close journal")
	}
	return err
}
