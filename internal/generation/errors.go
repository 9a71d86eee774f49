package generation

import (
	"context"
	"errors"
	"strings"

	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/idempotency"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/reconcile"
)

// StandardError maps a Generate error onto the shared job error codes.
func StandardError(err error) *apperrors.StandardError {
	var (
		requestErr *models.RequestValidationError
		invalidErr *reconcile.InvalidCompletionError
		schemaErr  *reconcile.SchemaValidationError
		dupErr     *idempotency.DuplicateRequestError
	)

	switch {
	case errors.As(err, &requestErr):
		return apperrors.NewInputValidationFailedError(strings.Join(requestErr.Violations, "; ")).
			WithMetadata("violations", requestErr.Violations)
	case errors.Is(err, reconcile.ErrEmptyCompletion):
		return apperrors.NewEmptyCompletionError()
	case errors.As(err, &invalidErr):
		return apperrors.NewInvalidCompletionError(err.Error()).
			WithMetadata("parseAttempts", invalidErr.Attempts)
	case errors.As(err, &schemaErr):
		return apperrors.NewSchemaValidationFailedError(err.Error()).
			WithMetadata("fieldPaths", schemaErr.Paths())
	case errors.As(err, &dupErr):
		return apperrors.NewDuplicateRequestError(dupErr.Error()).
			WithMetadata("distinguishingKey", dupErr.Key)
	case errors.Is(err, ErrGuardFailed):
		return apperrors.NewIdempotencyCheckFailedError(err)
	case errors.Is(err, ErrGenerationFailed) && errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewLLMTimeoutError(err)
	case errors.Is(err, ErrGenerationFailed):
		return apperrors.NewLLMGenerationFailedError(err)
	case errors.Is(err, ErrPersistFailed):
		return apperrors.NewDatabaseInsertFailedError(err)
	default:
		return apperrors.NewInternalError(err)
	}
}
