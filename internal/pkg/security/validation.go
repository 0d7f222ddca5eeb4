package security

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Validation limits for the evaluation API.
const (
	// MaxImageIDLength bounds query and image identifiers, in bytes.
	MaxImageIDLength = 256

	// MaxBatchQueries bounds the queries of one evaluate request.
	MaxBatchQueries = 10000

	// MaxRankedLength bounds a single ranked list.
	MaxRankedLength = 100000

	// MaxJudgments bounds the entries of one relevance map.
	MaxJudgments = 100000

	// MaxRequestSize bounds a request body.
	MaxRequestSize = 64 * 1024 * 1024 // 64MB
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// ValidateImageID validates a query or image identifier.
// Requirements: Required, at most MaxImageIDLength bytes, valid UTF-8, no
// whitespace or control characters.
func ValidateImageID(field, id string) error {
	if id == "" {
		return &ValidationError{Field: field, Constraint: "required"}
	}

	if len(id) > MaxImageIDLength {
		return &ValidationError{
			Field:      field,
			Value:      len(id),
			Constraint: fmt.Sprintf("maximum length is %d bytes", MaxImageIDLength),
		}
	}

	if !utf8.ValidString(id) {
		return &ValidationError{Field: field, Constraint: "must be valid UTF-8"}
	}

	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &ValidationError{
				Field:      field,
				Value:      SanitizeForLogWithLength(id, 64),
				Constraint: "must not contain whitespace or control characters",
			}
		}
	}

	return nil
}

// ValidateBatchSize validates the number of queries in a batch.
// Requirements: 1-MaxBatchQueries.
func ValidateBatchSize(n int) error {
	if n < 1 {
		return &ValidationError{Field: "queries", Constraint: "required"}
	}
	if n > MaxBatchQueries {
		return &ValidationError{
			Field:      "queries",
			Value:      n,
			Constraint: fmt.Sprintf("at most %d queries per batch", MaxBatchQueries),
		}
	}
	return nil
}

// ValidateRankedList validates the ranked list of one query. An empty list
// is allowed and scores zero.
func ValidateRankedList(queryID string, ranked []string) error {
	field := fmt.Sprintf("ranked[%s]", queryID)
	if len(ranked) > MaxRankedLength {
		return &ValidationError{
			Field:      field,
			Value:      len(ranked),
			Constraint: fmt.Sprintf("at most %d entries", MaxRankedLength),
		}
	}
	for _, id := range ranked {
		if err := ValidateImageID(field, id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateJudgments validates the image ids of a relevance map. Code values
// are not checked here; unknown codes are kept and counted as invalid.
func ValidateJudgments(images []string) error {
	if len(images) == 0 {
		return &ValidationError{Field: "relevance", Constraint: "required"}
	}
	if len(images) > MaxJudgments {
		return &ValidationError{
			Field:      "relevance",
			Value:      len(images),
			Constraint: fmt.Sprintf("at most %d entries", MaxJudgments),
		}
	}
	for _, id := range images {
		if err := ValidateImageID("relevance", id); err != nil {
			return err
		}
	}
	return nil
}
