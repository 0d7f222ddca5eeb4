package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ricesearch/rice-eval/internal/evaluation"
)

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := &evaluation.Report{
		RunID:      "run-1",
		PerQuery:   []evaluation.APRecord{{QueryID: "q1", AP: 0.5}},
		MAP:        0.5,
		QueryCount: 1,
	}

	if err := writeReport(path, report, "json"); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got evaluation.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.RunID != "run-1" || got.MAP != 0.5 {
		t.Errorf("report = %+v", got)
	}
}

func TestWriteReport_Errors(t *testing.T) {
	report := &evaluation.Report{RunID: "run-1"}

	tests := []struct {
		name   string
		path   string
		format string
	}{
		{"missing directory", filepath.Join(t.TempDir(), "nope", "report.json"), "json"},
		{"unknown format", filepath.Join(t.TempDir(), "report.txt"), "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := writeReport(tt.path, report, tt.format); err == nil {
				t.Error("expected error")
			}
		})
	}
}
