// internal/workers/travel/generate-travel-plan/handler.go
package generatetravelplan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/metrics"
	"travel-planner-workers/internal/common/validation"
	"travel-planner-workers/internal/generation"
	"travel-planner-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "generate-travel-plan"
)

// Generator produces and stores one travel plan per traveller and start date.
type Generator interface {
	Generate(ctx context.Context, identity string, req *models.TravelRequest) (*generation.Outcome[models.TravelResponse], error)
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
	req, err := input.toRequest()
	if err != nil {
		return nil, err
	}

	outcome, err := h.generator.Generate(ctx, input.Email, req)
	if err != nil {
		return nil, err
	}

	plan := outcome.Result
	// Not enforced: the plan is still usable, but the prompt asked for one
	// itinerary entry per requested day.
	if plan.TripDuration != req.NumberOfDays || len(plan.Itinerary) != req.NumberOfDays {
		h.logger.Warn("travel plan length differs from request", map[string]interface{}{
			"requestedDays":  req.NumberOfDays,
			"tripDuration":   plan.TripDuration,
			"itineraryDays":  len(plan.Itinerary),
			"recordId":       outcome.Record.ID.String(),
			"expectedEndDay": req.EndDate().String(),
			"planEndDay":     plan.EndDate.String(),
		})
	}

	h.logger.Info("travel plan generated", map[string]interface{}{
		"recordId": outcome.Record.ID.String(),
		"location": plan.Location,
		"days":     len(plan.Itinerary),
		"places":   len(plan.SightseeingPlaces),
		"repaired": outcome.Trace.Repaired,
	})

	return &Output{
		TravelPlan: plan,
		RecordKey:  outcome.Record.ID.String(),
		Repaired:   outcome.Trace.Repaired,
	}, nil
}

// toRequest checks the job-level fields and builds the generation request.
// Field constraints are checked by the request itself.
func (in *Input) toRequest() (*models.TravelRequest, error) {
	var violations []string
	if strings.TrimSpace(in.Email) == "" {
		violations = append(violations, "email: required field missing")
	} else if !validation.ValidateEmail(strings.TrimSpace(in.Email)) {
		violations = append(violations, "email: value must be a valid email address")
	}

	req := &models.TravelRequest{
		Location:          in.Location,
		NumberOfDays:      in.NumberOfDays,
		PreferredLanguage: in.PreferredLanguage,
		Interests:         in.Interests,
		BudgetLevel:       in.BudgetLevel,
	}
	if in.StartDate != "" {
		start, err := models.ParseDate(in.StartDate)
		if err != nil {
			violations = append(violations, fmt.Sprintf("startDate: %v", err))
		}
		req.StartDate = start
	}

	if len(violations) > 0 {
		return nil, &models.RequestValidationError{Violations: violations}
	}
	return req, nil
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
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
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
