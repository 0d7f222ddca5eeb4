package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/metrics"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestOpsRoutes(t *testing.T) {
	m := metrics.New()
	t.Cleanup(func() { _ = m.Close() })

	tests := []struct {
		name   string
		ready  bool
		ping   error
		path   string
		status int
		body   string
	}{
		{"healthz", false, nil, "/healthz", http.StatusOK, `"status":"ok"`},
		{"ready", true, nil, "/readyz", http.StatusOK, `"status":"ready"`},
		{"shutting down", false, nil, "/readyz", http.StatusServiceUnavailable, "shutting_down"},
		{"redis down", true, errors.New("refused"), "/readyz", http.StatusServiceUnavailable, "redis_unavailable"},
		{"metrics", true, nil, "/metrics", http.StatusOK, "rice_eval_batches_total"},
		{"history", true, nil, "/v1/evaluation/history", http.StatusOK, `"count":0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serverReady.Store(tt.ready)
			t.Cleanup(func() { serverReady.Store(false) })

			mux := http.NewServeMux()
			registerOpsRoutes(mux, fakePinger{err: tt.ping}, m)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestOpsRoutes_MetricsDisabled(t *testing.T) {
	mux := http.NewServeMux()
	registerOpsRoutes(mux, fakePinger{}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), logger.Discard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluation/evaluate", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic value leaked to the client")
	}
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	h := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), logger.Discard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestJournalArgs(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := eventsCmd()
		list, _, err := cmd.Find([]string{"list"})
		if err != nil {
			t.Fatal(err)
		}
		// Merge the parent's persistent flags as execution would.
		list.InheritedFlags()
		return list
	}

	t.Run("no journal", func(t *testing.T) {
		if _, _, err := journalArgs(newCmd(), &config.Config{}); err == nil {
			t.Error("expected error without a journal path")
		}
	})

	t.Run("config path", func(t *testing.T) {
		cfg := &config.Config{Bus: config.BusConfig{EventLog: "/tmp/events.jsonl"}}
		path, since, err := journalArgs(newCmd(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		if path != "/tmp/events.jsonl" || !since.IsZero() {
			t.Errorf("path = %q, since = %v", path, since)
		}
	})

	t.Run("flags override", func(t *testing.T) {
		cmd := newCmd()
		if err := cmd.Flags().Set("log", "/var/log/other.jsonl"); err != nil {
			t.Fatal(err)
		}
		if err := cmd.Flags().Set("since", "1h"); err != nil {
			t.Fatal(err)
		}

		cfg := &config.Config{Bus: config.BusConfig{EventLog: "/tmp/events.jsonl"}}
		before := time.Now().Add(-time.Hour)
		path, since, err := journalArgs(cmd, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if path != "/var/log/other.jsonl" {
			t.Errorf("path = %q", path)
		}
		if since.Before(before) || since.After(time.Now()) {
			t.Errorf("since = %v, want about one hour ago", since)
		}
	})
}
