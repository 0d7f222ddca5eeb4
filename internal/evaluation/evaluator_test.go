package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

type fakeStore struct {
	maps map[string]RelevanceMap
	errs map[string]error
}

func (s *fakeStore) GetRelevance(ctx context.Context, queryID string) (RelevanceMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.errs[queryID]; ok {
		return nil, err
	}
	m, ok := s.maps[queryID]
	if !ok {
		return nil, apperrors.NotFoundError("relevance record")
	}
	return m, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	scored   []string
	failed   []string
	batches  int
	lastMAP  float64
	lastRun  string
	runIDSet map[string]struct{}
}

func (p *recordingPublisher) QueryEvaluated(_ context.Context, runID string, rec APRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scored = append(p.scored, rec.QueryID)
	p.track(runID)
}

func (p *recordingPublisher) QueryFailed(_ context.Context, runID string, qe QueryError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, qe.QueryID)
	p.track(runID)
}

func (p *recordingPublisher) BatchEvaluated(_ context.Context, r *Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches++
	p.lastMAP = r.MAP
	p.lastRun = r.RunID
}

func (p *recordingPublisher) track(runID string) {
	if p.runIDSet == nil {
		p.runIDSet = make(map[string]struct{})
	}
	p.runIDSet[runID] = struct{}{}
}

func newTestEvaluator(t *testing.T, store AnnotationStore, workers int) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(Config{
		Annotations: store,
		Workers:     workers,
		Logger:      logger.Discard(),
	})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return e
}

func oxfordStore() *fakeStore {
	return &fakeStore{maps: map[string]RelevanceMap{
		"ashmolean_000000": {
			"ashmolean_000000": "2",
			"ashmolean_000303": "1",
			"ashmolean_000079": "2",
			"oxford_001964":    "3",
		},
		"all_souls_000013": {
			"all_souls_000013": "1",
			"all_souls_000026": "2",
			"all_souls_000040": "9",
		},
	}}
}

func TestNewEvaluator_RequiresStore(t *testing.T) {
	_, err := NewEvaluator(Config{})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEvaluate_SingleQueryMAPIdentity(t *testing.T) {
	e := newTestEvaluator(t, oxfordStore(), 1)
	ranked := []string{"ashmolean_000000", "oxford_001964", "ashmolean_000303", "oxford_002326", "ashmolean_000079"}

	report, err := e.EvaluateOne(context.Background(), Query{ID: "ashmolean_000000", Ranked: ranked})
	if err != nil {
		t.Fatalf("EvaluateOne() error = %v", err)
	}
	if len(report.PerQuery) != 1 {
		t.Fatalf("expected 1 record, got %d", len(report.PerQuery))
	}

	want := ComputeAP(
		NewIDSet("ashmolean_000000", "ashmolean_000303", "ashmolean_000079"),
		NewIDSet("oxford_001964"),
		ranked,
	)
	rec := report.PerQuery[0]
	if rec.AP != want.AP || report.MAP != rec.AP {
		t.Errorf("AP = %v, mAP = %v, want both %v", rec.AP, report.MAP, want.AP)
	}
	if len(rec.Missed) != 0 || len(rec.Detected) != 3 {
		t.Errorf("detected=%v missed=%v", rec.Detected, rec.Missed)
	}
	if rec.RankedCount != len(ranked) {
		t.Errorf("RankedCount = %d, want %d", rec.RankedCount, len(ranked))
	}
	if report.RunID == "" {
		t.Error("RunID should be set")
	}
}

func TestEvaluate_MissingGroundTruthIsReportedNotAveraged(t *testing.T) {
	e := newTestEvaluator(t, oxfordStore(), 2)

	report, err := e.Evaluate(context.Background(), []Query{
		{ID: "ashmolean_000000", Ranked: []string{"ashmolean_000000", "ashmolean_000303", "ashmolean_000079"}},
		{ID: "radcliffe_camera_000519", Ranked: []string{"x"}},
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(report.PerQuery) != 1 || report.PerQuery[0].QueryID != "ashmolean_000000" {
		t.Fatalf("unexpected records: %+v", report.PerQuery)
	}
	if report.MAP != 1 {
		t.Errorf("mAP = %v, want 1 (missing query must not count as 0)", report.MAP)
	}
	if report.FailedCount != 1 || report.Errors[0].QueryID != "radcliffe_camera_000519" {
		t.Fatalf("errors = %+v", report.Errors)
	}
	if report.Errors[0].Code != apperrors.CodeNotFound {
		t.Errorf("error code = %s, want %s", report.Errors[0].Code, apperrors.CodeNotFound)
	}
}

func TestEvaluate_EmptyMapIsNotFound(t *testing.T) {
	store := &fakeStore{maps: map[string]RelevanceMap{"q": {}}}
	_, err := ClassifyQuery(context.Background(), store, "q")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for empty map, got %v", err)
	}
}

func TestEvaluate_AllInvalidCodesStillScores(t *testing.T) {
	store := &fakeStore{maps: map[string]RelevanceMap{"q": {"a": "5", "b": "0"}}}
	e := newTestEvaluator(t, store, 1)

	report, err := e.Evaluate(context.Background(), []Query{{ID: "q", Ranked: []string{"a", "b"}}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	rec := report.PerQuery[0]
	if rec.AP != 0 || rec.Counts.Invalid != 2 {
		t.Errorf("record = %+v", rec)
	}
}

func TestEvaluate_EmptyBatch(t *testing.T) {
	store := &fakeStore{
		maps: map[string]RelevanceMap{},
		errs: map[string]error{"broken": apperrors.RedisError("hgetall", errors.New("connection refused"))},
	}
	e := newTestEvaluator(t, store, 2)

	report, err := e.Evaluate(context.Background(), []Query{
		{ID: "missing", Ranked: []string{"a"}},
		{ID: "broken", Ranked: []string{"b"}},
	})
	if !apperrors.IsEmptyBatch(err) {
		t.Fatalf("expected EMPTY_BATCH, got %v", err)
	}
	if report == nil || report.FailedCount != 2 {
		t.Fatalf("expected report with 2 failures, got %+v", report)
	}
	if report.Errors[0].Code != apperrors.CodeNotFound || report.Errors[1].Code != apperrors.CodeRedisError {
		t.Errorf("error codes = %s, %s", report.Errors[0].Code, report.Errors[1].Code)
	}

	_, err = e.Evaluate(context.Background(), nil)
	if !apperrors.IsEmptyBatch(err) {
		t.Fatalf("empty input: expected EMPTY_BATCH, got %v", err)
	}
}

func TestEvaluate_PlainCollaboratorErrorGetsInternalCode(t *testing.T) {
	store := &fakeStore{
		maps: map[string]RelevanceMap{"ok": {"a": "1"}},
		errs: map[string]error{"bad": errors.New("boom")},
	}
	e := newTestEvaluator(t, store, 1)

	report, err := e.Evaluate(context.Background(), []Query{{ID: "bad"}, {ID: "ok", Ranked: []string{"a"}}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if report.Errors[0].Code != apperrors.CodeInternal {
		t.Errorf("code = %s, want %s", report.Errors[0].Code, apperrors.CodeInternal)
	}
}

func TestEvaluate_PreservesOrderAndIsOrderIndependent(t *testing.T) {
	maps := make(map[string]RelevanceMap)
	var queries []Query
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("q%02d", i)
		maps[id] = RelevanceMap{"a": "1", "b": "2", "j": "3"}
		ranked := []string{"x", "a", "j", "b"}
		if i%3 == 0 {
			ranked = []string{"a", "b"}
		}
		queries = append(queries, Query{ID: id, Ranked: ranked})
	}
	store := &fakeStore{maps: maps}

	serial, err := newTestEvaluator(t, store, 1).Evaluate(context.Background(), queries)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := newTestEvaluator(t, store, 8).Evaluate(context.Background(), queries)
	if err != nil {
		t.Fatal(err)
	}

	for i, rec := range parallel.PerQuery {
		if rec.QueryID != queries[i].ID {
			t.Fatalf("position %d: got %s, want %s", i, rec.QueryID, queries[i].ID)
		}
		if rec.AP != serial.PerQuery[i].AP {
			t.Fatalf("position %d: parallel AP %v != serial %v", i, rec.AP, serial.PerQuery[i].AP)
		}
	}
	if !approx(parallel.MAP, serial.MAP) {
		t.Errorf("mAP parallel %v != serial %v", parallel.MAP, serial.MAP)
	}

	reversed := make([]Query, len(queries))
	for i, q := range queries {
		reversed[len(queries)-1-i] = q
	}
	rev, err := newTestEvaluator(t, store, 4).Evaluate(context.Background(), reversed)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(rev.MAP, serial.MAP) {
		t.Errorf("mAP depends on order: %v vs %v", rev.MAP, serial.MAP)
	}
}

func TestEvaluate_PublisherAndProgress(t *testing.T) {
	pub := &recordingPublisher{}
	var calls atomic.Int32
	e, err := NewEvaluator(Config{
		Annotations: oxfordStore(),
		Workers:     3,
		Publisher:   pub,
		OnProgress:  func(done, total int) { calls.Add(1) },
		Logger:      logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := e.Evaluate(context.Background(), []Query{
		{ID: "ashmolean_000000", Ranked: []string{"ashmolean_000303"}},
		{ID: "all_souls_000013", Ranked: []string{"all_souls_000026"}},
		{ID: "unknown"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(pub.scored) != 2 || len(pub.failed) != 1 || pub.batches != 1 {
		t.Errorf("publisher saw scored=%v failed=%v batches=%d", pub.scored, pub.failed, pub.batches)
	}
	if pub.lastRun != report.RunID || len(pub.runIDSet) != 1 {
		t.Errorf("events should carry the report run id")
	}
	if pub.lastMAP != report.MAP {
		t.Errorf("published mAP %v != %v", pub.lastMAP, report.MAP)
	}
	if calls.Load() != 3 {
		t.Errorf("progress called %d times, want 3", calls.Load())
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEvaluator(t, oxfordStore(), 2)
	report, err := e.Evaluate(ctx, []Query{{ID: "ashmolean_000000"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report != nil {
		t.Error("expected nil report on cancellation")
	}
}

func TestScoreQuery_InvalidCountsCarried(t *testing.T) {
	sets := Classify(RelevanceMap{"a": "1", "b": "x"})
	rec := ScoreQuery("q", sets, []string{"b", "a"})
	if rec.Counts.Invalid != 1 {
		t.Errorf("Invalid = %d, want 1", rec.Counts.Invalid)
	}
	if !approx(rec.AP, 0.25) {
		t.Errorf("AP = %v, want 0.25", rec.AP)
	}
}

func TestEvaluate_CutoffMetrics(t *testing.T) {
	e, err := NewEvaluator(Config{Annotations: oxfordStore(), CutoffK: 5, Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.EvaluateOne(context.Background(), Query{
		ID:     "all_souls_000013",
		Ranked: []string{"all_souls_000013", "all_souls_000026"},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := report.PerQuery[0].Cutoff
	if c == nil || c.K != 5 || c.ReciprocalRank != 1 || !approx(c.RecallAtK, 1) {
		t.Errorf("cutoff = %+v", c)
	}

	plain := newTestEvaluator(t, oxfordStore(), 1)
	report, err = plain.EvaluateOne(context.Background(), Query{ID: "all_souls_000013"})
	if err != nil {
		t.Fatal(err)
	}
	if report.PerQuery[0].Cutoff != nil {
		t.Error("cutoff metrics should be off by default")
	}
}
