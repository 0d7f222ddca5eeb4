package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// DefaultSearchLimit is used when SearchRequest.Limit is zero.
const DefaultSearchLimit = 100

// SearchDense runs a dense top-K query against collection. Results are
// ordered by descending score.
func (c *Client) SearchDense(ctx context.Context, collection string, req SearchRequest) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("dense vector is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	limit := req.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(req.Vector),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayloadInclude(c.config.NameField),
	}

	if req.VectorName != "" {
		queryPoints.Using = qdrant.PtrOf(req.VectorName)
	}

	if req.ScoreThreshold != nil {
		queryPoints.ScoreThreshold = req.ScoreThreshold
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, p := range results {
		out = append(out, SearchResult{
			ID:    pointID(p.GetId()),
			Score: p.GetScore(),
			Name:  getStringValue(p.GetPayload(), c.config.NameField),
		})
	}
	return out, nil
}

func pointID(id *qdrant.PointId) string {
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

// denseVector extracts the default or named dense vector of a point.
func denseVector(vectors *qdrant.VectorsOutput, name string) []float32 {
	if vectors == nil {
		return nil
	}

	var v *qdrant.VectorOutput
	if name == "" {
		v = vectors.GetVector()
	} else {
		v = vectors.GetVectors().GetVectors()[name]
	}
	if v == nil {
		return nil
	}
	if d := v.GetDense(); d != nil {
		return d.GetData()
	}
	return v.GetData()
}
