package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// Query outcome labels.
const (
	StatusScored = "scored"
	StatusFailed = "failed"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Evaluation metrics
	QueriesEvaluated *CounterVec // labels: status
	QueryErrors      *CounterVec // labels: code
	AveragePrecision *Histogram
	BatchesTotal     *Counter
	EmptyBatches     *Counter
	BatchDuration    *Histogram
	BatchSize        *Histogram
	LastMAP          *Gauge
	JudgmentsWritten *Counter

	// Bus metrics
	BusEventsPublished *CounterVec   // labels: topic
	BusEventLatency    *HistogramVec // labels: topic
	BusErrors          *CounterVec   // labels: topic

	// HTTP metrics
	HTTPRequests         *CounterVec   // labels: method, path, status
	HTTPDuration         *HistogramVec // labels: method, path
	HTTPRequestsInFlight *Gauge
	HTTPRequestSize      *HistogramVec // labels: method, path

	// System metrics
	GoroutineCount *Gauge
	MemoryUsage    *Gauge // in bytes
	Uptime         *Counter

	// History keeps the mAP of recent batches.
	History *MAPHistory

	// Redis storage (optional)
	redisStorage *RedisStorage

	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
}

// New creates a new metrics instance with all metrics initialized.
// Uses in-memory storage only.
func New() *Metrics {
	return NewWithConfig("memory", "", nil)
}

// NewWithConfig creates a new metrics instance with specified persistence.
// persistence is "memory" or "redis". When Redis is requested but cannot be
// reached the history falls back to memory.
func NewWithConfig(persistence, redisURL string, log *logger.Logger) *Metrics {
	if log == nil {
		log = logger.Default()
	}

	var redisStorage *RedisStorage
	if persistence == "redis" && redisURL != "" {
		storage, err := NewRedisStorage(redisURL)
		if err != nil {
			log.WithError(err).Warn("Metrics history falling back to memory")
		} else {
			redisStorage = storage
		}
	}

	m := &Metrics{
		QueriesEvaluated: NewCounterVec(
			"rice_eval_queries_total",
			"Total number of evaluated queries",
			[]string{"status"},
		),
		QueryErrors: NewCounterVec(
			"rice_eval_query_errors_total",
			"Total number of query-level evaluation errors",
			[]string{"code"},
		),
		AveragePrecision: NewHistogram(
			"rice_eval_average_precision",
			"Average precision per scored query",
			[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		),
		BatchesTotal: NewCounter(
			"rice_eval_batches_total",
			"Total number of completed evaluation batches",
			nil,
		),
		EmptyBatches: NewCounter(
			"rice_eval_empty_batches_total",
			"Total number of batches in which no query was scored",
			nil,
		),
		BatchDuration: NewHistogram(
			"rice_eval_batch_duration_ms",
			"Evaluation batch duration in milliseconds",
			[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		),
		BatchSize: NewHistogram(
			"rice_eval_batch_queries",
			"Number of queries per evaluation batch",
			[]float64{1, 5, 10, 25, 55, 100, 250, 500, 1000},
		),
		LastMAP: NewGauge(
			"rice_eval_last_map",
			"Mean average precision of the most recent batch",
			nil,
		),
		JudgmentsWritten: NewCounter(
			"rice_eval_judgments_written_total",
			"Total number of relevance maps written",
			nil,
		),

		BusEventsPublished: NewCounterVec(
			"rice_eval_bus_events_published_total",
			"Total number of events published to the bus",
			[]string{"topic"},
		),
		BusEventLatency: NewHistogramVec(
			"rice_eval_bus_event_latency_seconds",
			"Event bus latency in seconds",
			[]string{"topic"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		),
		BusErrors: NewCounterVec(
			"rice_eval_bus_errors_total",
			"Total number of event bus errors",
			[]string{"topic"},
		),

		HTTPRequests: NewCounterVec(
			"rice_eval_http_requests_total",
			"Total number of HTTP requests",
			[]string{"method", "path", "status"},
		),
		HTTPDuration: NewHistogramVec(
			"rice_eval_http_request_duration_seconds",
			"HTTP request duration in seconds",
			[]string{"method", "path"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		),
		HTTPRequestsInFlight: NewGauge(
			"rice_eval_http_requests_in_flight",
			"Number of HTTP requests currently being processed",
			nil,
		),
		HTTPRequestSize: NewHistogramVec(
			"rice_eval_http_request_size_bytes",
			"HTTP request size in bytes",
			[]string{"method", "path"},
			[]float64{100, 1000, 10000, 100000, 1000000, 10000000},
		),

		GoroutineCount: NewGauge(
			"rice_eval_goroutines",
			"Number of goroutines",
			nil,
		),
		MemoryUsage: NewGauge(
			"rice_eval_memory_bytes",
			"Memory usage in bytes",
			nil,
		),
		Uptime: NewCounter(
			"rice_eval_uptime_seconds",
			"Application uptime in seconds",
			nil,
		),

		History:      NewMAPHistory(defaultHistorySize, redisStorage),
		redisStorage: redisStorage,
		startTime:    time.Now(),
		stop:         make(chan struct{}),
	}

	go m.collectSystemMetrics()

	return m
}

// collectSystemMetrics periodically collects system metrics until Close.
func (m *Metrics) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}

		m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		m.MemoryUsage.Set(float64(memStats.Alloc))

		m.Uptime.Add(15)
	}
}

// RecordQuery records one scored query.
func (m *Metrics) RecordQuery(ap float64) {
	m.QueriesEvaluated.WithLabels(StatusScored).Inc()
	m.AveragePrecision.Observe(ap)
}

// RecordQueryFailure records one query-level failure by error code.
func (m *Metrics) RecordQueryFailure(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.QueriesEvaluated.WithLabels(StatusFailed).Inc()
	m.QueryErrors.WithLabels(code).Inc()
}

// RecordBatch records a completed batch and appends its mAP to History.
// A batch with no scored query has no mAP: it is counted in EmptyBatches
// and leaves LastMAP and History untouched.
func (m *Metrics) RecordBatch(runID string, mAP float64, scored, queryCount int, durationMs int64, finishedAt time.Time) {
	m.BatchDuration.Observe(float64(durationMs))
	m.BatchSize.Observe(float64(queryCount))

	if scored == 0 {
		m.EmptyBatches.Inc()
	} else {
		m.LastMAP.Set(mAP)
		if m.History != nil {
			m.History.Record(DataPoint{Timestamp: finishedAt, Value: mAP, RunID: runID})
		}
	}

	// Counted last so a reader seeing the batch also sees its values.
	m.BatchesTotal.Inc()
}

// RecordJudgments records relevance maps written through the API.
func (m *Metrics) RecordJudgments(n int) {
	m.JudgmentsWritten.Add(int64(n))
}

// RecordBusPublish records event bus publish metrics.
func (m *Metrics) RecordBusPublish(topic string, latencyMs int64, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()

	// Prometheus convention is seconds
	latencySeconds := float64(latencyMs) / 1000.0
	m.BusEventLatency.WithLabels(topic).Observe(latencySeconds)

	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// RecordHTTP records HTTP request metrics.
// This is called by the HTTP middleware.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64, sizeBytes int64) {
	normalizedPath := normalizePath(path)

	m.HTTPRequests.WithLabels(method, normalizedPath, statusCode(status)).Inc()
	m.HTTPDuration.WithLabels(method, normalizedPath).Observe(durationSeconds)

	if sizeBytes > 0 {
		m.HTTPRequestSize.WithLabels(method, normalizedPath).Observe(float64(sizeBytes))
	}
}

// Reset resets counters and gauges to zero (useful for testing).
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchesTotal.Reset()
	m.EmptyBatches.Reset()
	m.JudgmentsWritten.Reset()
	m.Uptime.Reset()

	m.LastMAP.Set(0)
	m.HTTPRequestsInFlight.Set(0)
	m.GoroutineCount.Set(0)
	m.MemoryUsage.Set(0)

	m.startTime = time.Now()
}

// Close stops the system collector and releases the Redis connection.
func (m *Metrics) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.redisStorage != nil {
		return m.redisStorage.Close()
	}
	return nil
}

// IsRedisPersisted returns true if the mAP history is persisted to Redis.
func (m *Metrics) IsRedisPersisted() bool {
	return m.redisStorage != nil
}
