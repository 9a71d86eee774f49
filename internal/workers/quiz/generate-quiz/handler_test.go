package generatequiz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/generation"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/reconcile"
	"travel-planner-workers/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generatorFunc func(ctx context.Context, identity string, req *models.QuizRequest) (*generation.Outcome[models.QuizBatch], error)

func (f generatorFunc) Generate(ctx context.Context, identity string, req *models.QuizRequest) (*generation.Outcome[models.QuizBatch], error) {
	return f(ctx, identity, req)
}

func testQuiz() *models.QuizBatch {
	return &models.QuizBatch{
		Subject:    "Go",
		Difficulty: "easy",
		Language:   "english",
		Questions: []models.QuizQuestion{
			{Question: "Which keyword starts a goroutine?", Options: []string{"go", "async"}, Answer: "go"},
			{Question: "Zero value of a map?", Options: []string{"nil", "{}"}, Answer: "empty"},
		},
	}
}

func TestHandler_Execute_Success(t *testing.T) {
	id := uuid.New()
	var gotIdentity string
	var gotReq *models.QuizRequest

	handler := NewHandler(LoadConfig(), generatorFunc(func(_ context.Context, identity string, req *models.QuizRequest) (*generation.Outcome[models.QuizBatch], error) {
		gotIdentity, gotReq = identity, req
		return &generation.Outcome[models.QuizBatch]{
			Result: testQuiz(),
			Record: store.Record{ID: id},
			Trace:  &reconcile.Trace{Repaired: true},
		}, nil
	}), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Email:             " a@example.com ",
		Subject:           "Go",
		NumberOfQuestions: 2,
		Topics:            []string{"maps"},
	})
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", gotIdentity)
	assert.Equal(t, []string{"maps"}, gotReq.Topics)
	assert.Equal(t, id.String(), output.RecordKey)
	assert.True(t, output.Repaired)
	assert.Len(t, output.Quiz.Questions, 2)
}

func TestHandler_Execute_InvalidEmail(t *testing.T) {
	called := false
	handler := NewHandler(LoadConfig(), generatorFunc(func(context.Context, string, *models.QuizRequest) (*generation.Outcome[models.QuizBatch], error) {
		called = true
		return nil, nil
	}), logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{Email: "nope", Subject: "Go", NumberOfQuestions: 1})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.False(t, called)
}

func TestHandler_Execute_ErrorsMapToJobCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    apperrors.ErrorCode
		retries int
	}{
		{"invalid completion", &reconcile.InvalidCompletionError{Kind: models.KindQuiz}, apperrors.ErrCodeInvalidCompletion, 0},
		{"llm outage", fmt.Errorf("%w: %w", generation.ErrGenerationFailed, errors.New("503")), apperrors.ErrCodeLLMGenerationFailed, 2},
		{"database", fmt.Errorf("%w: %w", generation.ErrPersistFailed, errors.New("reset")), apperrors.ErrCodeDatabaseInsertFailed, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(LoadConfig(), generatorFunc(func(context.Context, string, *models.QuizRequest) (*generation.Outcome[models.QuizBatch], error) {
				return nil, tt.err
			}), logger.NewTestLogger(t))

			_, err := handler.Execute(context.Background(), &Input{Email: "a@example.com", Subject: "Go", NumberOfQuestions: 1})
			require.Error(t, err)

			bpmnErr := apperrors.ConvertToBPMNError(generation.StandardError(err))
			assert.Equal(t, string(tt.code), bpmnErr.ErrorVariables["originalErrorCode"])
			assert.Equal(t, tt.retries, bpmnErr.Retries)
		})
	}
}
