// Package generation runs one request through the full path: request
// validation, duplicate guard, prompt, completion, reconciliation,
// persistence. A result is stored at most once per (kind, identity,
// distinguishing key); the previously stored value is never returned.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"travel-planner-workers/internal/common/llm"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/observability"
	"travel-planner-workers/internal/idempotency"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/reconcile"
	"travel-planner-workers/internal/store"

	"github.com/google/uuid"
)

var (
	ErrGuardFailed      = errors.New("IDEMPOTENCY_CHECK_FAILED")
	ErrGenerationFailed = errors.New("LLM_GENERATION_FAILED")
	ErrPersistFailed    = errors.New("DATABASE_INSERT_FAILED")
)

// Stage names for observability.
const (
	StageGuard      = "guard"
	StageCompletion = "completion"
	StageReconcile  = "reconcile"
	StagePersist    = "persist"
	StageIndex      = "index"
)

const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeDuplicate = "duplicate"
)

// Request is a generation request. Implementations are pointer types so
// Normalize can apply defaults in place.
type Request interface {
	Kind() string
	DistinguishingKey() string
	Normalize()
	Validate(now time.Time) error
}

type Guard interface {
	AlreadyGenerated(ctx context.Context, kind, identity, key string) (bool, error)
	MarkGenerated(ctx context.Context, kind, identity, key string)
}

type Persister interface {
	Insert(ctx context.Context, rec store.Record) error
}

type Parser[Res any] interface {
	ParseAndValidate(raw string) (*Res, *reconcile.Trace, error)
}

// Indexer publishes a stored result to secondary systems. Failures are
// logged and never fail the generation.
type Indexer[Res any] interface {
	Index(ctx context.Context, rec store.Record, result *Res) error
}

// PromptFunc renders the completion request for a normalized request.
type PromptFunc[Req any] func(req Req) (llm.Request, error)

// Dependencies are the collaborators of a Service. Indexer, Metrics, Clock
// and NewID are optional.
type Dependencies[Req Request, Res any] struct {
	Guard     Guard
	Completer llm.Completer
	Prompt    PromptFunc[Req]
	Parser    Parser[Res]
	Store     Persister
	Indexer   Indexer[Res]
	Metrics   *observability.Observability
	Clock     func() time.Time
	NewID     func() uuid.UUID
	Logger    logger.Logger
}

// Outcome is a freshly generated and stored result.
type Outcome[Res any] struct {
	Result *Res
	Record store.Record
	Trace  *reconcile.Trace
}

type Service[Req Request, Res any] struct {
	deps Dependencies[Req, Res]
}

func NewService[Req Request, Res any](deps Dependencies[Req, Res]) *Service[Req, Res] {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.New
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	return &Service[Req, Res]{deps: deps}
}

// Generate produces and stores a result for identity. Errors:
//   - models.ErrInvalidRequest for a bad identity or request
//   - idempotency.ErrDuplicateRequest when a result is already stored
//   - ErrGuardFailed, ErrGenerationFailed, ErrPersistFailed wrapping the
//     collaborator error
//   - reconcile.ErrEmptyCompletion, *reconcile.InvalidCompletionError or
//     *reconcile.SchemaValidationError when the completion is unusable
//
// On any error nothing is stored.
func (s *Service[Req, Res]) Generate(ctx context.Context, identity string, req Req) (*Outcome[Res], error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return nil, &models.RequestValidationError{Violations: []string{"identity: required field missing"}}
	}

	req.Normalize()
	if err := req.Validate(s.deps.Clock()); err != nil {
		return nil, err
	}

	kind, key := req.Kind(), req.DistinguishingKey()
	log := s.deps.Logger.WithFields(map[string]interface{}{
		"kind":     kind,
		"identity": identity,
		"key":      key,
	})

	start := time.Now()
	exists, err := s.deps.Guard.AlreadyGenerated(ctx, kind, identity, key)
	if err != nil {
		s.record(ctx, kind, StageGuard, outcomeError, start)
		return nil, fmt.Errorf("%w: %w", ErrGuardFailed, err)
	}
	if exists {
		s.record(ctx, kind, StageGuard, outcomeDuplicate, start)
		log.Info("result already generated, skipping completion", nil)
		return nil, &idempotency.DuplicateRequestError{Kind: kind, Identity: identity, Key: key}
	}
	s.record(ctx, kind, StageGuard, outcomeOK, start)

	prompt, err := s.deps.Prompt(req)
	if err != nil {
		return nil, fmt.Errorf("build %s prompt: %w", kind, err)
	}

	start = time.Now()
	raw, err := s.deps.Completer.Complete(ctx, prompt)
	if err != nil {
		s.record(ctx, kind, StageCompletion, outcomeError, start)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	s.record(ctx, kind, StageCompletion, outcomeOK, start)

	start = time.Now()
	result, trace, err := s.deps.Parser.ParseAndValidate(raw)
	if err != nil {
		s.record(ctx, kind, StageReconcile, outcomeError, start)
		return nil, err
	}
	s.record(ctx, kind, StageReconcile, outcomeOK, start)

	// A caller that gave up must not find a record it never saw.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: abandoned before persist: %w", ErrGenerationFailed, err)
	}

	rec, err := s.newRecord(kind, identity, key, req, result)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	if err := s.deps.Store.Insert(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.record(ctx, kind, StagePersist, outcomeDuplicate, start)
			log.Warn("concurrent generation stored first", nil)
			return nil, &idempotency.DuplicateRequestError{Kind: kind, Identity: identity, Key: key}
		}
		s.record(ctx, kind, StagePersist, outcomeError, start)
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	s.record(ctx, kind, StagePersist, outcomeOK, start)

	s.deps.Guard.MarkGenerated(ctx, kind, identity, key)

	if s.deps.Indexer != nil {
		start = time.Now()
		if err := s.deps.Indexer.Index(ctx, rec, result); err != nil {
			s.record(ctx, kind, StageIndex, outcomeError, start)
			log.Warn("failed to index result", map[string]interface{}{
				"recordId": rec.ID.String(),
				"error":    err.Error(),
			})
		} else {
			s.record(ctx, kind, StageIndex, outcomeOK, start)
		}
	}

	log.Info("result generated", map[string]interface{}{
		"recordId": rec.ID.String(),
		"repaired": trace.Repaired,
	})

	return &Outcome[Res]{Result: result, Record: rec, Trace: trace}, nil
}

func (s *Service[Req, Res]) newRecord(kind, identity, key string, req Req, result *Res) (store.Record, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal %s request: %w", kind, err)
	}
	resJSON, err := json.Marshal(result)
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal %s result: %w", kind, err)
	}
	return store.Record{
		ID:                s.deps.NewID(),
		Kind:              kind,
		Identity:          identity,
		DistinguishingKey: key,
		Request:           reqJSON,
		Result:            resJSON,
		CreatedAt:         s.deps.Clock().UTC(),
	}, nil
}

func (s *Service[Req, Res]) record(ctx context.Context, kind, stage, outcome string, start time.Time) {
	s.deps.Metrics.RecordStage(ctx, kind, stage, outcome, time.Since(start))
}
