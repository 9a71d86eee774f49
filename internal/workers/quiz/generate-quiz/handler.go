// internal/workers/quiz/generate-quiz/handler.go
package generatequiz

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/metrics"
	"travel-planner-workers/internal/common/validation"
	"travel-planner-workers/internal/generation"
	"travel-planner-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/samber/lo"
)

const (
	TaskType = "generate-quiz"
)

type Generator interface {
	Generate(ctx context.Context, identity string, req *models.QuizRequest) (*generation.Outcome[models.QuizBatch], error)
}

type Handler struct {
	config    *Config
	generator Generator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, generator Generator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		generator: generator,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInputParsingFailedError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, generation.StandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	email := strings.TrimSpace(input.Email)
	if !validation.ValidateEmail(email) {
		return nil, &models.RequestValidationError{Violations: []string{"email: value must be a valid email address"}}
	}

	req := &models.QuizRequest{
		Subject:           input.Subject,
		NumberOfQuestions: input.NumberOfQuestions,
		Difficulty:        input.Difficulty,
		PreferredLanguage: input.PreferredLanguage,
		Topics:            input.Topics,
	}

	outcome, err := h.generator.Generate(ctx, email, req)
	if err != nil {
		return nil, err
	}

	quiz := outcome.Result
	// answers outside their options cannot be graded
	unanswerable := lo.CountBy(quiz.Questions, func(q models.QuizQuestion) bool {
		return !lo.Contains(q.Options, q.Answer)
	})
	if len(quiz.Questions) != req.NumberOfQuestions || unanswerable > 0 {
		h.logger.Warn("quiz differs from request", map[string]interface{}{
			"requested":    req.NumberOfQuestions,
			"generated":    len(quiz.Questions),
			"unanswerable": unanswerable,
			"recordId":     outcome.Record.ID.String(),
		})
	}

	h.logger.Info("quiz generated", map[string]interface{}{
		"recordId":  outcome.Record.ID.String(),
		"subject":   quiz.Subject,
		"questions": len(quiz.Questions),
		"repaired":  outcome.Trace.Repaired,
	})

	return &Output{
		Quiz:      quiz,
		RecordKey: outcome.Record.ID.String(),
		Repaired:  outcome.Trace.Repaired,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, stdErr *apperrors.StandardError) {
	if err := h.errors.HandleJobError(context.Background(), client, job, stdErr); err != nil {
		h.logger.WithError(err).Error("failed to report job error", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
