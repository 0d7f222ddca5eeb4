// Package ranking supplies the ranked retrieval lists that evaluations score.
package ranking

import (
	"context"
	"maps"
	"path"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Source produces the ranked identifier list for a query.
type Source interface {
	// Rank returns the ranked list for queryID, best first. A query the
	// source does not know is a NOT_FOUND AppError.
	Rank(ctx context.Context, queryID string) ([]string, error)

	// Queries lists the query ids the source can rank, sorted.
	Queries(ctx context.Context) ([]string, error)
}

// StripExtension turns an image file name into an identifier.
func StripExtension(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// StaticSource serves fixed ranked lists.
type StaticSource map[string][]string

// Rank implements Source.
func (s StaticSource) Rank(_ context.Context, queryID string) ([]string, error) {
	ranked, ok := s[queryID]
	if !ok {
		return nil, apperrors.NotFoundError("ranked list").WithDetail("query_id", queryID)
	}
	return slices.Clone(ranked), nil
}

// Queries implements Source.
func (s StaticSource) Queries(_ context.Context) ([]string, error) {
	return slices.Sorted(maps.Keys(s)), nil
}

// Collect ranks every id through src with up to workers concurrent calls.
// Ids unknown to the source are returned in missing; any other error aborts.
func Collect(ctx context.Context, src Source, ids []string, workers int) (results map[string][]string, missing []string, err error) {
	if workers < 1 {
		workers = 1
	}

	lists := make([][]string, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			ranked, err := src.Rank(gctx, id)
			if err != nil {
				if apperrors.IsNotFound(err) {
					return nil
				}
				return err
			}
			lists[i] = ranked
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	results = make(map[string][]string, len(ids))
	for i, id := range ids {
		if found[i] {
			results[id] = lists[i]
		} else {
			missing = append(missing, id)
		}
	}
	return results, missing, nil
}

// BuildQueries ranks ids (or every query src knows when ids is empty) and
// returns them as evaluation queries in id order. Ids the source cannot rank
// are returned in missing.
func BuildQueries(ctx context.Context, src Source, ids []string, workers int) (queries []evaluation.Query, missing []string, err error) {
	if len(ids) == 0 {
		ids, err = src.Queries(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	results, missing, err := Collect(ctx, src, ids, workers)
	if err != nil {
		return nil, nil, err
	}

	queries = make([]evaluation.Query, 0, len(results))
	for _, id := range ids {
		if ranked, ok := results[id]; ok {
			queries = append(queries, evaluation.Query{ID: id, Ranked: ranked})
		}
	}
	return queries, missing, nil
}
