// internal/workers/travel/fetch-travel-plan/handler.go
package fetchtravelplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/metrics"
	"travel-planner-workers/internal/common/validation"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-travel-plan"
)

type RecordReader interface {
	Get(ctx context.Context, kind, identity, key string) (*store.Record, error)
}

type Handler struct {
	config *Config
	store  RecordReader
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, reader RecordReader, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  reader,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
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
		var stdErr *apperrors.StandardError
		if !errors.As(err, &stdErr) {
			stdErr = apperrors.NewInternalError(err)
		}
		h.failJob(client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !validation.ValidateEmail(email) {
		return nil, apperrors.NewInputValidationFailedError("email: value must be a valid email address")
	}
	startDate, err := models.ParseDate(input.StartDate)
	if err != nil {
		return nil, apperrors.NewInputValidationFailedError("startDate: " + err.Error())
	}

	rec, err := h.store.Get(ctx, models.KindTravelPlan, email, startDate.String())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewTravelPlanNotFoundError(email, startDate.String())
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("fetch_travel_plan", err)
	}

	var plan models.TravelResponse
	if err := json.Unmarshal(rec.Result, &plan); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("decode stored plan %s: %w", rec.ID, err))
	}

	h.logger.Info("travel plan fetched", map[string]interface{}{
		"recordId": rec.ID.String(),
		"location": plan.Location,
	})

	return &Output{
		TravelPlan: &plan,
		RecordKey:  rec.ID.String(),
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
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
