// Package qdrant wraps the Qdrant Go client with the read-only operations
// needed to pull ranked image lists out of a vector collection.
package qdrant

// Point is a stored point as returned by a scroll.
type Point struct {
	// ID is the point identifier.
	ID string

	// Name is the value of the configured name payload field.
	Name string

	// Vector is the dense vector (only populated when requested).
	Vector []float32
}

// SearchRequest defines parameters for a dense top-K search.
type SearchRequest struct {
	// Vector is the query embedding.
	Vector []float32

	// VectorName selects a named vector. Empty uses the default vector.
	VectorName string

	// Limit is the maximum number of results to return.
	Limit uint64

	// ScoreThreshold filters results below this score.
	ScoreThreshold *float32
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// ID is the point identifier.
	ID string

	// Score is the similarity score.
	Score float32

	// Name is the value of the configured name payload field.
	Name string
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	Name          string
	PointsCount   uint64
	Status        string
	SegmentsCount uint64
}
