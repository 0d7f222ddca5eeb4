package groundtruth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

// QueryPrefix is stripped from the first token of a query file.
const QueryPrefix = "oxc1_"

// Ground-truth file suffixes. Within a group they are applied in this order,
// so an identifier listed twice keeps the code of the later list.
var listSuffixes = []struct {
	suffix string
	code   evaluation.Code
}{
	{"_ok.txt", evaluation.CodeOK},
	{"_good.txt", evaluation.CodeGood},
	{"_junk.txt", evaluation.CodeJunk},
}

const querySuffix = "_query.txt"

// Record is the ground truth of one query group.
type Record struct {
	Group     string                  `json:"group"`
	QueryID   string                  `json:"query_id"`
	Relevance evaluation.RelevanceMap `json:"relevance"`
}

// LoadDir reads a ground-truth directory of <group>_{query,ok,good,junk}.txt
// files. Groups whose query file is missing or unusable are skipped.
// Records are sorted by group.
func LoadDir(dir string, log *logger.Logger) ([]Record, error) {
	if log == nil {
		log = logger.Discard()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ground truth dir: %w", err)
	}

	groups := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		if g, ok := groupOf(e.Name()); ok {
			groups[g] = struct{}{}
		} else {
			log.Debug("Skipping unrecognised file", "file", e.Name())
		}
	}

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	var records []Record
	for _, group := range names {
		queryID, err := readQueryID(filepath.Join(dir, group+querySuffix))
		if err != nil {
			log.WithError(err).Warn("Skipping ground truth group", "group", group)
			continue
		}

		rel := make(evaluation.RelevanceMap)
		for _, ls := range listSuffixes {
			ids, err := readIDs(filepath.Join(dir, group+ls.suffix))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("reading %s%s: %w", group, ls.suffix, err)
			}
			for _, id := range ids {
				rel[id] = ls.code.Value()
			}
		}

		records = append(records, Record{Group: group, QueryID: queryID, Relevance: rel})
	}

	log.Info("Loaded ground truth", "dir", dir, "groups", len(names), "queries", len(records))
	return records, nil
}

// Import writes every record through w.
func Import(ctx context.Context, w Writer, records []Record) error {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.PutRelevance(ctx, rec.QueryID, rec.Relevance); err != nil {
			return fmt.Errorf("importing %s: %w", rec.QueryID, err)
		}
	}
	return nil
}

func groupOf(name string) (string, bool) {
	if g, ok := strings.CutSuffix(name, querySuffix); ok {
		return g, true
	}
	for _, ls := range listSuffixes {
		if g, ok := strings.CutSuffix(name, ls.suffix); ok {
			return g, true
		}
	}
	return "", false
}

// readQueryID returns the first token of the first line, minus QueryPrefix.
func readQueryID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%s: empty query file", filepath.Base(path))
	}

	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return "", fmt.Errorf("%s: empty first line", filepath.Base(path))
	}
	id, ok := strings.CutPrefix(fields[0], QueryPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("%s: first token %q lacks %s prefix", filepath.Base(path), fields[0], QueryPrefix)
	}
	return id, nil
}

func readIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, sc.Err()
}
