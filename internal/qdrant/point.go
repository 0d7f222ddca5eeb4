package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

const scrollBatchSize = 256

// FindByName returns the first point whose name payload equals one of names,
// tried in order. withVector also fetches the named (or default) vector.
// It returns nil when nothing matches.
func (c *Client) FindByName(ctx context.Context, collection string, names []string, vectorName string, withVector bool) (*Point, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	for _, name := range names {
		points, err := c.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch(c.config.NameField, name)},
			},
			Limit:       qdrant.PtrOf(uint32(1)),
			WithPayload: qdrant.NewWithPayloadInclude(c.config.NameField),
			WithVectors: qdrant.NewWithVectors(withVector),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		if len(points) == 0 {
			continue
		}

		p := points[0]
		return &Point{
			ID:     pointID(p.GetId()),
			Name:   getStringValue(p.GetPayload(), c.config.NameField),
			Vector: denseVector(p.GetVectors(), vectorName),
		}, nil
	}

	return nil, nil
}

// ListNames pages through collection and returns the name payload of every
// point that has one, in scroll order.
func (c *Client) ListNames(ctx context.Context, collection string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	var (
		names  []string
		offset *qdrant.PointId
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		// The scroll offset is inclusive, so one extra point is fetched to
		// learn where the next page starts.
		points, err := c.client.Scroll(pageCtx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          qdrant.PtrOf(uint32(scrollBatchSize + 1)),
			WithPayload:    qdrant.NewWithPayloadInclude(c.config.NameField),
			Offset:         offset,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		page := points
		if len(points) > scrollBatchSize {
			page = points[:scrollBatchSize]
		}
		for _, p := range page {
			if name := getStringValue(p.GetPayload(), c.config.NameField); name != "" {
				names = append(names, name)
			}
		}

		if len(points) <= scrollBatchSize {
			break
		}
		offset = points[scrollBatchSize].GetId()
	}

	return names, nil
}
