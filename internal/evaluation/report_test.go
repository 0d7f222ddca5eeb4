package evaluation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

func sampleReport() *Report {
	return &Report{
		RunID: "run-1",
		PerQuery: []APRecord{
			{
				QueryID:     "ashmolean_000000",
				AP:          0.7917,
				Precision:   2.0 / 3.0,
				Recall:      1,
				Counts:      RelevanceCounts{Total: 4, OK: 1, Good: 2, Junk: 1},
				RankedCount: 4,
				Detected:    []string{"a", "b"},
			},
		},
		Errors: []QueryError{
			{QueryID: "radcliffe_camera_000519", Code: apperrors.CodeNotFound, Message: "relevance record not found"},
		},
		MAP:         0.7917,
		QueryCount:  2,
		FailedCount: 1,
	}
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatText); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"query ashmolean_000000",
		"ap        = 0.7917",
		"recall    = 1.0000",
		"ok=1 good=2 junk=1 invalid=0",
		"detected (2): a, b",
		"missed (0): -",
		"radcliffe_camera_000519 [NOT_FOUND]",
		"mAP = 0.7917 (1 queries scored, 1 failed)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q\n%s", want, out)
		}
	}
}

func TestWriteReport_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, &Report{FailedCount: 3}, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "mAP = undefined (0 queries scored, 3 failed)") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatJSON); err != nil {
		t.Fatal(err)
	}

	var got Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.MAP != 0.7917 || got.FailedCount != 1 || len(got.PerQuery) != 1 {
		t.Errorf("decoded report = %+v", got)
	}
	if !strings.Contains(buf.String(), `"map": 0.7917`) {
		t.Errorf("expected map key in JSON output:\n%s", buf.String())
	}
}

func TestWriteReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatYAML); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got["run_id"] != "run-1" || got["failed_count"] != 1 {
		t.Errorf("decoded = %v", got)
	}
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	err := WriteReport(&bytes.Buffer{}, sampleReport(), "xml")
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReport_Record(t *testing.T) {
	r := sampleReport()
	if _, ok := r.Record("ashmolean_000000"); !ok {
		t.Error("expected record")
	}
	if _, ok := r.Record("radcliffe_camera_000519"); ok {
		t.Error("failed query must not have a record")
	}
}
