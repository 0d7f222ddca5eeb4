package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// FileSource serves ranked lists from a results file: a JSON object mapping
// query id to its ranked identifiers.
type FileSource struct {
	StaticSource
	path string
}

// LoadFile reads a results file.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}

	var lists map[string][]string
	if err := json.Unmarshal(data, &lists); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation,
			fmt.Sprintf("results file %s is not a query to ranked-list object", path), err)
	}
	if lists == nil {
		lists = make(map[string][]string)
	}

	return &FileSource{StaticSource: StaticSource(lists), path: path}, nil
}

// Path returns the file the source was loaded from.
func (f *FileSource) Path() string {
	return f.path
}

// WriteFile writes lists as a results file.
func WriteFile(path string, lists map[string][]string) error {
	data, err := json.MarshalIndent(lists, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return nil
}

// Export ranks every query src knows and writes the results file.
func Export(ctx context.Context, src Source, path string, workers int) (written int, missing []string, err error) {
	ids, err := src.Queries(ctx)
	if err != nil {
		return 0, nil, err
	}
	lists, missing, err := Collect(ctx, src, ids, workers)
	if err != nil {
		return 0, nil, err
	}
	if err := WriteFile(path, lists); err != nil {
		return 0, nil, err
	}
	return len(lists), missing, nil
}
