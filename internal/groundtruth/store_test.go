package groundtruth

import (
	"context"
	"testing"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetRelevance(ctx, "q1"); !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	in := evaluation.RelevanceMap{"a": "1", "b": "3"}
	if err := s.PutRelevance(ctx, "q1", in); err != nil {
		t.Fatal(err)
	}
	in["a"] = "9"

	got, err := s.GetRelevance(ctx, "q1")
	if err != nil {
		t.Fatal(err)
	}
	if got["a"] != "1" {
		t.Error("store must copy maps on write")
	}
	got["b"] = "2"
	again, _ := s.GetRelevance(ctx, "q1")
	if again["b"] != "3" {
		t.Error("store must copy maps on read")
	}

	_ = s.PutRelevance(ctx, "q0", evaluation.RelevanceMap{"x": "2"})
	ids, _ := s.QueryIDs(ctx)
	if len(ids) != 2 || ids[0] != "q0" || ids[1] != "q1" {
		t.Errorf("QueryIDs = %v", ids)
	}
}

func TestMemoryStore_WithEvaluator(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.PutRelevance(ctx, "q", evaluation.RelevanceMap{"a": "1", "c": "3", "b": "2"})

	e, err := evaluation.NewEvaluator(evaluation.Config{Annotations: s})
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.EvaluateOne(ctx, evaluation.Query{ID: "q", Ranked: []string{"a", "c", "x", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if d := report.MAP - 0.7917; d > 1e-4 || d < -1e-4 {
		t.Errorf("mAP = %v, want ~0.7917", report.MAP)
	}
}
