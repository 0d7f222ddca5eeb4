package metrics

import (
	"context"
	"sync"
	"time"
)

const (
	defaultHistorySize = 500
	historyMetric      = "map"
)

// DataPoint is one recorded batch result.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	RunID     string    `json:"run_id,omitempty"`
}

// MAPHistory keeps the mAP of the most recent batches, oldest first, with
// optional Redis persistence.
type MAPHistory struct {
	mu      sync.RWMutex
	points  []DataPoint
	max     int
	storage *RedisStorage
}

// NewMAPHistory creates a history retaining at most max points. A non-nil
// storage is used to preload existing points and to persist new ones.
func NewMAPHistory(max int, storage *RedisStorage) *MAPHistory {
	if max <= 0 {
		max = defaultHistorySize
	}
	h := &MAPHistory{
		points:  make([]DataPoint, 0, max),
		max:     max,
		storage: storage,
	}

	if storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if loaded, err := storage.LoadHistory(ctx, historyMetric, time.Time{}); err == nil && len(loaded) > 0 {
			if len(loaded) > max {
				loaded = loaded[len(loaded)-max:]
			}
			h.points = append(h.points, loaded...)
		}
	}

	return h
}

// Record appends dp, dropping the oldest point once the history is full.
func (h *MAPHistory) Record(dp DataPoint) {
	if dp.Timestamp.IsZero() {
		dp.Timestamp = time.Now()
	}

	h.mu.Lock()
	h.points = append(h.points, dp)
	if len(h.points) > h.max {
		h.points = h.points[len(h.points)-h.max:]
	}
	h.mu.Unlock()

	// Persist to Redis if available (non-blocking)
	if h.storage != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = h.storage.SaveDataPoint(ctx, historyMetric, dp)
		}()
	}
}

// Points returns a copy of the recorded points.
func (h *MAPHistory) Points() []DataPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]DataPoint, len(h.points))
	copy(result, h.points)
	return result
}

// Since returns the points recorded at or after since.
func (h *MAPHistory) Since(since time.Time) []DataPoint {
	all := h.Points()
	result := make([]DataPoint, 0, len(all))
	for _, dp := range all {
		if !dp.Timestamp.Before(since) {
			result = append(result, dp)
		}
	}
	return result
}

// Last returns the most recent point.
func (h *MAPHistory) Last() (DataPoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.points) == 0 {
		return DataPoint{}, false
	}
	return h.points[len(h.points)-1], true
}
