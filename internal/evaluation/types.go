package evaluation

import "time"

// Query pairs a query identifier with the ranked list retrieved for it.
type Query struct {
	ID     string   `json:"id" yaml:"id"`
	Ranked []string `json:"ranked" yaml:"ranked"`
}

// APRecord is the evaluation result of a single query.
type APRecord struct {
	QueryID     string          `json:"query_id" yaml:"query_id"`
	AP          float64         `json:"ap" yaml:"ap"`
	Precision   float64         `json:"precision" yaml:"precision"`
	Recall      float64         `json:"recall" yaml:"recall"`
	Counts      RelevanceCounts `json:"counts" yaml:"counts"`
	RankedCount int             `json:"ranked_count" yaml:"ranked_count"`
	Detected    []string        `json:"detected" yaml:"detected"`
	Missed      []string        `json:"missed" yaml:"missed"`
	Cutoff      *CutoffMetrics  `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
}

// QueryError records a query that could not be scored.
type QueryError struct {
	QueryID string `json:"query_id" yaml:"query_id"`
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Report is the outcome of one batch run.
type Report struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time    `json:"finished_at" yaml:"finished_at"`
	PerQuery    []APRecord   `json:"per_query" yaml:"per_query"`
	Errors      []QueryError `json:"errors,omitempty" yaml:"errors,omitempty"`
	MAP         float64      `json:"map" yaml:"map"`
	QueryCount  int          `json:"query_count" yaml:"query_count"`
	FailedCount int          `json:"failed_count" yaml:"failed_count"`
}

// Record returns the record for queryID, if it was scored.
func (r *Report) Record(queryID string) (APRecord, bool) {
	for _, rec := range r.PerQuery {
		if rec.QueryID == queryID {
			return rec, true
		}
	}
	return APRecord{}, false
}

// meanAP returns the arithmetic mean of AP over records.
func meanAP(records []APRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += r.AP
	}
	return sum / float64(len(records))
}
