// Package reconcile turns a free-form LLM completion into a validated,
// typed result. It extracts the JSON candidate, parses it strictly, repairs
// comma damage once when the first parse fails, then checks the tree against
// a JSON Schema before decoding it.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/metrics"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultContextWindow is how much raw text either side of a parse error is
// kept in a ParseAttempt.
const DefaultContextWindow = 200

// rawLogLimit bounds the head and tail of a raw completion in failure logs.
const rawLogLimit = 5000

// Options tune a Pipeline. Zero values select the defaults.
type Options struct {
	RepairWindow  int
	ContextWindow int
	Logger        logger.Logger
}

// Trace records how a completion was reconciled.
type Trace struct {
	Extracted    string         `json:"-"`
	Attempts     []ParseAttempt `json:"attempts,omitempty"`
	Repaired     bool           `json:"repaired"`
	RepairedText string         `json:"-"`
	Repair       RepairReport   `json:"repair"`
}

// Pipeline reconciles completions into T using a compiled schema. It holds
// no per-call state and is safe for concurrent use.
type Pipeline[T any] struct {
	kind          string
	schema        *gojsonschema.Schema
	contextWindow int
	logger        logger.Logger

	repair func(text string, errorOffset int) (string, RepairReport)
}

// NewPipeline compiles schemaJSON for results of the given kind.
func NewPipeline[T any](kind string, schemaJSON []byte, opts Options) (*Pipeline[T], error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", kind, err)
	}

	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	return &Pipeline[T]{
		kind:          kind,
		schema:        schema,
		contextWindow: opts.ContextWindow,
		logger:        opts.Logger.WithFields(map[string]interface{}{"kind": kind}),
		repair:        Repairer{Window: opts.RepairWindow}.Repair,
	}, nil
}

// Kind is the result kind this pipeline produces.
func (p *Pipeline[T]) Kind() string {
	return p.kind
}

// ParseAndValidate reconciles raw into a T. Errors are ErrEmptyCompletion,
// *InvalidCompletionError or *SchemaValidationError. The trace is returned
// whenever extraction succeeded, including on failure.
func (p *Pipeline[T]) ParseAndValidate(raw string) (*T, *Trace, error) {
	extracted, err := Extract(raw)
	if err != nil {
		metrics.CompletionParseTotal.WithLabelValues(p.kind, metrics.OutcomeEmpty).Inc()
		p.logger.Error("completion is empty", map[string]interface{}{"rawLength": len(raw)})
		return nil, nil, err
	}

	trace := &Trace{Extracted: extracted}
	text := extracted

	tree, first := p.parse(text, StageDirect)
	if first != nil {
		trace.Attempts = append(trace.Attempts, *first)
		p.logger.Warn("direct parse failed, repairing", map[string]interface{}{
			"offset":  first.Offset,
			"line":    first.Line,
			"column":  first.Column,
			"error":   first.Message,
			"context": first.Context,
		})

		repaired, report := p.repair(text, first.Offset)
		trace.Repaired = true
		trace.RepairedText = repaired
		trace.Repair = report
		p.countRepairs(report)

		var second *ParseAttempt
		tree, second = p.parse(repaired, StageRepaired)
		if second != nil {
			trace.Attempts = append(trace.Attempts, *second)
			metrics.CompletionParseTotal.WithLabelValues(p.kind, metrics.OutcomeInvalid).Inc()
			p.logger.Error("completion is not valid JSON after repair", map[string]interface{}{
				"offset":  second.Offset,
				"line":    second.Line,
				"column":  second.Column,
				"error":   second.Message,
				"context": second.Context,
				"raw":     logger.Truncate(raw, rawLogLimit),
			})
			return nil, trace, &InvalidCompletionError{Kind: p.kind, Attempts: trace.Attempts, Raw: raw}
		}
		text = repaired
	}

	result, fields := p.validate(tree, text)
	if len(fields) > 0 {
		verr := newSchemaValidationError(p.kind, raw, fields)
		metrics.CompletionParseTotal.WithLabelValues(p.kind, metrics.OutcomeSchemaInvalid).Inc()
		p.logger.Error("completion failed schema validation", map[string]interface{}{
			"fields":   verr.Paths(),
			"repaired": trace.Repaired,
			"raw":      logger.Truncate(raw, rawLogLimit),
		})
		return nil, trace, verr
	}

	outcome := metrics.OutcomeDirect
	if trace.Repaired {
		outcome = metrics.OutcomeRepaired
		p.logger.Info("completion parsed after repair", map[string]interface{}{
			"trailingCommasRemoved": trace.Repair.TrailingCommasRemoved,
			"windowCommasInserted":  trace.Repair.WindowCommasInserted,
			"globalCommasInserted":  trace.Repair.GlobalCommasInserted,
		})
	}
	metrics.CompletionParseTotal.WithLabelValues(p.kind, outcome).Inc()

	return result, trace, nil
}

// parse strictly decodes exactly one JSON value. Numbers stay json.Number so
// integers are not silently widened.
func (p *Pipeline[T]) parse(text, stage string) (interface{}, *ParseAttempt) {
	data := []byte(text)

	// Unmarshal checks the whole input, trailing data included, and reports
	// byte offsets relative to its start.
	if err := json.Unmarshal(data, new(json.RawMessage)); err != nil {
		return nil, p.attempt(text, stage, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, p.attempt(text, stage, err)
	}
	return tree, nil
}

func (p *Pipeline[T]) attempt(text, stage string, err error) *ParseAttempt {
	offset := len(text)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		// Offset counts the offending byte.
		offset = int(syntaxErr.Offset) - 1
	}
	offset = clamp(offset, 0, len(text))

	line, column := position(text, offset)
	return &ParseAttempt{
		Stage:   stage,
		Offset:  offset,
		Line:    line,
		Column:  column,
		Message: err.Error(),
		Context: text[clamp(offset-p.contextWindow, 0, len(text)):clamp(offset+p.contextWindow, 0, len(text))],
	}
}

// position converts a byte offset into a 1-based line and column.
func position(text string, offset int) (int, int) {
	prefix := text[:offset]
	line := strings.Count(prefix, "\n") + 1
	column := offset - strings.LastIndex(prefix, "\n")
	return line, column
}

// validate checks tree against the schema and decodes text into T. Every
// violation is collected; decoding only runs on a schema-valid tree.
func (p *Pipeline[T]) validate(tree interface{}, text string) (*T, []FieldError) {
	res, err := p.schema.Validate(gojsonschema.NewGoLoader(tree))
	if err != nil {
		return nil, []FieldError{{Message: err.Error()}}
	}
	if !res.Valid() {
		fields := make([]FieldError, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			fields = append(fields, FieldError{Path: fieldPath(re), Message: re.Description()})
		}
		return nil, fields
	}

	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, []FieldError{{Path: typeErr.Field, Message: fmt.Sprintf("cannot use %s as %s", typeErr.Value, typeErr.Type)}}
		}
		return nil, []FieldError{{Message: err.Error()}}
	}
	return &out, nil
}

// fieldPath names the offending field. Required errors are reported against
// the parent object, so the missing property is appended.
func fieldPath(re gojsonschema.ResultError) string {
	path := re.Field()
	if path == "(root)" {
		path = ""
	}

	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if path == "" {
				return prop
			}
			return path + "." + prop
		}
	}
	return path
}

func (p *Pipeline[T]) countRepairs(report RepairReport) {
	counter := metrics.CompletionRepairsTotal
	if report.TrailingCommasRemoved > 0 {
		counter.WithLabelValues(p.kind, RuleTrailingComma).Add(float64(report.TrailingCommasRemoved))
	}
	if report.WindowCommasInserted > 0 {
		counter.WithLabelValues(p.kind, RuleWindowComma).Add(float64(report.WindowCommasInserted))
	}
	if report.GlobalCommasInserted > 0 {
		counter.WithLabelValues(p.kind, RuleGlobalComma).Add(float64(report.GlobalCommasInserted))
	}
}
