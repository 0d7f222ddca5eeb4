package ranking

import (
	"context"
	"fmt"
	"slices"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/qdrant"
)

// VectorIndex is the subset of the Qdrant client QdrantSource needs.
type VectorIndex interface {
	FindByName(ctx context.Context, collection string, names []string, vectorName string, withVector bool) (*qdrant.Point, error)
	ListNames(ctx context.Context, collection string) ([]string, error)
	SearchDense(ctx context.Context, collection string, req qdrant.SearchRequest) ([]qdrant.SearchResult, error)
}

// QdrantConfig configures a QdrantSource.
type QdrantConfig struct {
	// QueryCollection holds the embeddings of the query images.
	QueryCollection string

	// DatabaseCollection holds the embeddings searched against.
	DatabaseCollection string

	// VectorName selects a named vector in both collections.
	VectorName string

	// TopK bounds the ranked list length.
	TopK int

	// Extension is tried first when looking up a query image by name.
	Extension string
}

// QdrantSource ranks a query by searching the database collection with the
// stored embedding of the query image.
type QdrantSource struct {
	index VectorIndex
	cfg   QdrantConfig
	log   *logger.Logger
}

// NewQdrantSource creates a Qdrant-backed source.
func NewQdrantSource(index VectorIndex, cfg QdrantConfig, log *logger.Logger) (*QdrantSource, error) {
	if index == nil {
		return nil, apperrors.ValidationError("vector index is required")
	}
	if cfg.QueryCollection == "" || cfg.DatabaseCollection == "" {
		return nil, apperrors.ValidationError("query and database collections are required")
	}
	if cfg.TopK < 1 {
		return nil, apperrors.ValidationError("top_k must be positive")
	}
	if cfg.Extension == "" {
		cfg.Extension = ".jpg"
	}
	if log == nil {
		log = logger.Default()
	}
	return &QdrantSource{index: index, cfg: cfg, log: log}, nil
}

// Rank implements Source.
func (s *QdrantSource) Rank(ctx context.Context, queryID string) ([]string, error) {
	point, err := s.index.FindByName(ctx, s.cfg.QueryCollection,
		[]string{queryID + s.cfg.Extension, queryID}, s.cfg.VectorName, true)
	if err != nil {
		return nil, apperrors.QdrantError("looking up query image", err)
	}
	if point == nil {
		return nil, apperrors.NotFoundError("query image").
			WithDetail("query_id", queryID).
			WithDetail("collection", s.cfg.QueryCollection)
	}
	if len(point.Vector) == 0 {
		return nil, apperrors.QdrantError(
			fmt.Sprintf("query image %s has no vector %q", queryID, s.cfg.VectorName), nil)
	}

	hits, err := s.index.SearchDense(ctx, s.cfg.DatabaseCollection, qdrant.SearchRequest{
		Vector:     point.Vector,
		VectorName: s.cfg.VectorName,
		Limit:      uint64(s.cfg.TopK),
	})
	if err != nil {
		return nil, apperrors.QdrantError("searching database collection", err)
	}

	ranked := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Name == "" {
			s.log.Debug("Skipping hit without name", "query_id", queryID, "point_id", h.ID)
			continue
		}
		ranked = append(ranked, StripExtension(h.Name))
	}
	return ranked, nil
}

// Queries implements Source.
func (s *QdrantSource) Queries(ctx context.Context) ([]string, error) {
	names, err := s.index.ListNames(ctx, s.cfg.QueryCollection)
	if err != nil {
		return nil, apperrors.QdrantError("listing query images", err)
	}

	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, StripExtension(n))
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
