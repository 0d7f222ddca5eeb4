package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug text", "debug", "text"},
		{"info json", "info", "json"},
		{"warn text", "warn", "text"},
		{"error json", "error", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			if logger == nil || logger.Logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_WithQuery(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "json").WithQuery("all_souls_000013")

	l.Info("classified")

	if !strings.Contains(buf.String(), `"query_id":"all_souls_000013"`) {
		t.Errorf("expected query_id attribute, got: %s", buf.String())
	}
}

func TestLogger_WithRunAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "text").
		WithRun("run-1").
		WithError(context.DeadlineExceeded)

	l.Warn("query failed")

	out := buf.String()
	if !strings.Contains(out, "run_id=run-1") {
		t.Errorf("expected run_id, got: %s", out)
	}
	if !strings.Contains(out, "context deadline exceeded") {
		t.Errorf("expected error text, got: %s", out)
	}
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "text")

	if l := logger.WithContext(context.Background()); l != logger {
		t.Error("WithContext() without request id should return the same logger")
	}

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	logger.WithContext(ctx).Info("handled")
	if !strings.Contains(buf.String(), "request_id=req-123") {
		t.Errorf("expected request_id, got: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", "text")

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
}

func TestDiscard(t *testing.T) {
	if Discard() == nil {
		t.Fatal("Discard() returned nil")
	}
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
