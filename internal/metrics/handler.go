package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler returns an HTTP handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(m.PrometheusFormat()))
	})
}

// ServeHTTP implements http.Handler interface.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// HistoryResponse is the body served by HistoryHandler.
type HistoryResponse struct {
	Points []DataPoint `json:"points"`
	Count  int         `json:"count"`
}

// HistoryHandler serves the recorded batch mAP values as JSON. The optional
// "since" query parameter is a Go duration such as 24h.
func (m *Metrics) HistoryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		points := m.History.Points()
		if raw := r.URL.Query().Get("since"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				http.Error(w, "invalid since duration", http.StatusBadRequest)
				return
			}
			points = m.History.Since(time.Now().Add(-d))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HistoryResponse{Points: points, Count: len(points)})
	})
}
