// Package groundtruth stores and loads the per-query relevance judgments
// that evaluations are scored against.
package groundtruth

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Store reads relevance maps. It satisfies evaluation.AnnotationStore.
type Store interface {
	evaluation.AnnotationStore
	QueryIDs(ctx context.Context) ([]string, error)
}

// Writer persists relevance maps. It satisfies evaluation.JudgmentWriter.
type Writer interface {
	evaluation.JudgmentWriter
}

// MemoryStore is an in-process Store and Writer.
type MemoryStore struct {
	mu   sync.RWMutex
	maps map[string]evaluation.RelevanceMap
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{maps: make(map[string]evaluation.RelevanceMap)}
}

// GetRelevance returns a copy of the stored map.
func (s *MemoryStore) GetRelevance(_ context.Context, queryID string) (evaluation.RelevanceMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.maps[queryID]
	if !ok {
		return nil, apperrors.NotFoundError("relevance record").WithDetail("query_id", queryID)
	}
	return maps.Clone(m), nil
}

// PutRelevance replaces the map of queryID.
func (s *MemoryStore) PutRelevance(_ context.Context, queryID string, m evaluation.RelevanceMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps[queryID] = maps.Clone(m)
	return nil
}

// QueryIDs returns the stored query ids, sorted.
func (s *MemoryStore) QueryIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.maps)), nil
}
