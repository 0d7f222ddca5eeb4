package metrics

import (
	"context"

	"github.com/ricesearch/rice-eval/internal/evaluation"
)

// CountingWriter counts relevance maps successfully written through inner.
type CountingWriter struct {
	inner   evaluation.JudgmentWriter
	metrics *Metrics
}

var _ evaluation.JudgmentWriter = (*CountingWriter)(nil)

// NewCountingWriter wraps inner.
func NewCountingWriter(inner evaluation.JudgmentWriter, m *Metrics) *CountingWriter {
	return &CountingWriter{inner: inner, metrics: m}
}

// PutRelevance writes through inner and counts the write on success.
func (w *CountingWriter) PutRelevance(ctx context.Context, queryID string, m evaluation.RelevanceMap) error {
	if err := w.inner.PutRelevance(ctx, queryID, m); err != nil {
		return err
	}
	w.metrics.RecordJudgments(1)
	return nil
}
