package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrEmptyCompletion   = errors.New("EMPTY_COMPLETION")
	ErrInvalidCompletion = errors.New("INVALID_COMPLETION")
	ErrSchemaValidation  = errors.New("SCHEMA_VALIDATION_FAILED")
)

// Parse attempt stages.
const (
	StageDirect   = "direct"
	StageRepaired = "repaired"
)

// ParseAttempt describes one failed strict parse. Offset is a byte offset
// into the attempted text; Line and Column are 1-based.
type ParseAttempt struct {
	Stage   string `json:"stage"`
	Offset  int    `json:"offset"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Context string `json:"context"`
}

func (a ParseAttempt) String() string {
	return fmt.Sprintf("%s parse: %s at line %d column %d (offset %d)", a.Stage, a.Message, a.Line, a.Column, a.Offset)
}

// InvalidCompletionError is returned when the completion is not valid JSON
// even after repair. Raw is the untouched completion text.
type InvalidCompletionError struct {
	Kind     string
	Attempts []ParseAttempt
	Raw      string
}

func (e *InvalidCompletionError) Error() string {
	parts := lo.Map(e.Attempts, func(a ParseAttempt, _ int) string { return a.String() })
	return fmt.Sprintf("%s completion is not valid JSON: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *InvalidCompletionError) Unwrap() error {
	return ErrInvalidCompletion
}

// FieldError is one schema violation. Path uses dotted notation with array
// indices, e.g. "itinerary.0.activities".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaValidationError lists every field of a parsed completion that does
// not satisfy the result schema.
type SchemaValidationError struct {
	Kind   string
	Fields []FieldError
	Raw    string
}

func newSchemaValidationError(kind, raw string, fields []FieldError) *SchemaValidationError {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return &SchemaValidationError{Kind: kind, Fields: fields, Raw: raw}
}

func (e *SchemaValidationError) Error() string {
	parts := lo.Map(e.Fields, func(f FieldError, _ int) string {
		if f.Path == "" {
			return f.Message
		}
		return f.Path + ": " + f.Message
	})
	return fmt.Sprintf("%s completion failed schema validation: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *SchemaValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// Paths returns the distinct offending field paths.
func (e *SchemaValidationError) Paths() []string {
	return lo.Uniq(lo.Map(e.Fields, func(f FieldError, _ int) string { return f.Path }))
}
