package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// WriteReport renders r to w in the given format.
func WriteReport(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return writeText(w, r)
	default:
		return apperrors.ValidationError(fmt.Sprintf("unknown report format: %s", format))
	}
}

func writeText(w io.Writer, r *Report) error {
	var b strings.Builder
	rule := strings.Repeat("-", 60)

	for _, rec := range r.PerQuery {
		fmt.Fprintf(&b, "%s\n", rule)
		fmt.Fprintf(&b, "query %s\n", rec.QueryID)
		fmt.Fprintf(&b, "  ap        = %.4f\n", rec.AP)
		fmt.Fprintf(&b, "  precision = %.4f\n", rec.Precision)
		fmt.Fprintf(&b, "  recall    = %.4f\n", rec.Recall)
		fmt.Fprintf(&b, "  ground truth: total=%d ok=%d good=%d junk=%d invalid=%d\n",
			rec.Counts.Total, rec.Counts.OK, rec.Counts.Good, rec.Counts.Junk, rec.Counts.Invalid)
		fmt.Fprintf(&b, "  ranked: %d\n", rec.RankedCount)
		if c := rec.Cutoff; c != nil {
			fmt.Fprintf(&b, "  @%d: precision=%.4f recall=%.4f ndcg=%.4f rr=%.4f\n",
				c.K, c.PrecisionAtK, c.RecallAtK, c.NDCGAtK, c.ReciprocalRank)
		}
		fmt.Fprintf(&b, "  detected (%d): %s\n", len(rec.Detected), joinIDs(rec.Detected))
		fmt.Fprintf(&b, "  missed (%d): %s\n", len(rec.Missed), joinIDs(rec.Missed))
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "%s\n", rule)
		fmt.Fprintf(&b, "failed queries:\n")
		for _, qe := range r.Errors {
			fmt.Fprintf(&b, "  %s [%s] %s\n", qe.QueryID, qe.Code, qe.Message)
		}
	}

	fmt.Fprintf(&b, "%s\n", rule)
	if len(r.PerQuery) == 0 {
		fmt.Fprintf(&b, "mAP = undefined (0 queries scored, %d failed)\n", r.FailedCount)
	} else {
		fmt.Fprintf(&b, "mAP = %.4f (%d queries scored, %d failed)\n",
			r.MAP, len(r.PerQuery), r.FailedCount)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
