// Package evaluation scores ranked retrieval lists against ground-truth
// relevance: per-query average precision and the batch mean (mAP).
package evaluation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// AnnotationStore provides the ground-truth relevance map of a query.
// Implementations return a NOT_FOUND AppError when the query has no record.
type AnnotationStore interface {
	GetRelevance(ctx context.Context, queryID string) (RelevanceMap, error)
}

// JudgmentWriter stores the ground-truth relevance map of a query.
type JudgmentWriter interface {
	PutRelevance(ctx context.Context, queryID string, m RelevanceMap) error
}

// EventPublisher receives evaluation progress. Implementations must be safe
// for concurrent use and must not block for long.
type EventPublisher interface {
	QueryEvaluated(ctx context.Context, runID string, rec APRecord)
	QueryFailed(ctx context.Context, runID string, qe QueryError)
	BatchEvaluated(ctx context.Context, report *Report)
}

// Config wires an Evaluator to its collaborators.
type Config struct {
	// Annotations is required.
	Annotations AnnotationStore

	// Workers bounds concurrent query evaluations. Defaults to 1.
	Workers int

	// Publisher is optional.
	Publisher EventPublisher

	// OnProgress, if set, is called after every query. It may be called
	// from several goroutines.
	OnProgress func(done, total int)

	// CutoffK enables CutoffMetrics at this rank when positive.
	CutoffK int

	Logger *logger.Logger
}

// Evaluator runs batch evaluations.
type Evaluator struct {
	annotations AnnotationStore
	workers     int
	publisher   EventPublisher
	onProgress  func(done, total int)
	cutoffK     int
	log         *logger.Logger
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Annotations == nil {
		return nil, apperrors.ValidationError("annotation store is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Evaluator{
		annotations: cfg.Annotations,
		workers:     cfg.Workers,
		publisher:   cfg.Publisher,
		onProgress:  cfg.OnProgress,
		cutoffK:     cfg.CutoffK,
		log:         cfg.Logger,
	}, nil
}

// ClassifyQuery fetches and classifies the ground truth of one query.
// A missing or empty relevance map is NOT_FOUND; a map whose codes are all
// invalid is not an error.
func ClassifyQuery(ctx context.Context, store AnnotationStore, queryID string) (RelevanceSets, error) {
	m, err := store.GetRelevance(ctx, queryID)
	if err != nil {
		return RelevanceSets{}, err
	}
	if len(m) == 0 {
		return RelevanceSets{}, apperrors.NotFoundError("relevance record").
			WithDetail("query_id", queryID)
	}
	return Classify(m), nil
}

// ScoreQuery scores one ranked list against classified ground truth.
func ScoreQuery(queryID string, sets RelevanceSets, ranked []string) APRecord {
	positive := sets.Positive()
	res := ComputeAP(positive, sets.Junk, ranked)
	detected, missed := Detect(positive, ranked)

	return APRecord{
		QueryID:     queryID,
		AP:          res.AP,
		Precision:   res.Precision,
		Recall:      res.Recall,
		Counts:      sets.Counts,
		RankedCount: len(ranked),
		Detected:    detected.Sorted(),
		Missed:      missed.Sorted(),
	}
}

// Evaluate scores every query and aggregates mAP over the ones that
// succeeded. Queries that fail are listed in Report.Errors and excluded from
// the mean. If none succeeds the report is returned together with an
// EMPTY_BATCH error. PerQuery preserves input order.
func (e *Evaluator) Evaluate(ctx context.Context, queries []Query) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		QueryCount: len(queries),
	}
	log := e.log.WithRun(report.RunID)
	log.Info("Starting evaluation", "queries", len(queries), "workers", e.workers)

	records := make([]*APRecord, len(queries))
	failures := make([]*QueryError, len(queries))

	var done progressCounter
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, qerr := e.evaluateQuery(gctx, report.RunID, q)
			if qerr != nil {
				failures[i] = qerr
			} else {
				records[i] = rec
			}
			if e.onProgress != nil {
				e.onProgress(done.inc(), len(queries))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range queries {
		switch {
		case records[i] != nil:
			report.PerQuery = append(report.PerQuery, *records[i])
		case failures[i] != nil:
			report.Errors = append(report.Errors, *failures[i])
		}
	}
	report.FailedCount = len(report.Errors)
	report.MAP = meanAP(report.PerQuery)
	report.FinishedAt = time.Now().UTC()

	if e.publisher != nil {
		e.publisher.BatchEvaluated(ctx, report)
	}

	if len(report.PerQuery) == 0 {
		log.Warn("No query produced an AP record", "failed", report.FailedCount)
		err := apperrors.EmptyBatchError(report.FailedCount)
		for _, qe := range report.Errors {
			err = err.WithDetail(qe.QueryID, qe.Code)
		}
		return report, err
	}

	log.Info("Evaluation complete",
		"map", report.MAP,
		"scored", len(report.PerQuery),
		"failed", report.FailedCount,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// EvaluateOne evaluates a single query as a batch of one.
func (e *Evaluator) EvaluateOne(ctx context.Context, q Query) (*Report, error) {
	return e.Evaluate(ctx, []Query{q})
}

func (e *Evaluator) evaluateQuery(ctx context.Context, runID string, q Query) (*APRecord, *QueryError) {
	log := e.log.WithQuery(q.ID)

	sets, err := ClassifyQuery(ctx, e.annotations, q.ID)
	if err != nil {
		qe := &QueryError{
			QueryID: q.ID,
			Code:    apperrors.CodeOf(err),
			Message: err.Error(),
		}
		if qe.Code == "" {
			qe.Code = apperrors.CodeInternal
		}
		log.WithError(err).Warn("Query skipped", "code", qe.Code)
		if e.publisher != nil {
			e.publisher.QueryFailed(ctx, runID, *qe)
		}
		return nil, qe
	}

	if sets.Counts.Invalid > 0 {
		log.Warn("Dropped relevance entries with invalid codes",
			"invalid", sets.Counts.Invalid,
			"ids", sets.InvalidIDs,
		)
	}

	rec := ScoreQuery(q.ID, sets, q.Ranked)
	if e.cutoffK > 0 {
		m := ComputeCutoff(sets, q.Ranked, e.cutoffK)
		rec.Cutoff = &m
	}
	log.Debug("Query scored",
		"ap", rec.AP,
		"precision", rec.Precision,
		"recall", rec.Recall,
		"detected", len(rec.Detected),
		"missed", len(rec.Missed),
	)

	if e.publisher != nil {
		e.publisher.QueryEvaluated(ctx, runID, rec)
	}
	return &rec, nil
}

type progressCounter struct{ n atomic.Int64 }

func (c *progressCounter) inc() int { return int(c.n.Add(1)) }
