// internal/workers/travel/export-travel-plans/handler.go
package exporttravelplans

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/metrics"
	"travel-planner-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/samber/lo"
)

const (
	TaskType = "export-travel-plans"

	csvContentType = "text/csv"
)

var csvHeader = []string{"email", "location", "number_of_days", "start_date", "end_date"}

type RecordLister interface {
	ListTravelRecords(ctx context.Context) ([]models.TravelRecord, error)
}

// Uploader stores an export and hands out a download link for it.
type Uploader interface {
	Put(ctx context.Context, name string, content []byte, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Handler struct {
	config   *Config
	records  RecordLister
	uploader Uploader
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
	now      func() time.Time
}

// NewHandler builds the export handler. A nil uploader returns every export
// inline.
func NewHandler(config *Config, records RecordLister, uploader Uploader, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		records:  records,
		uploader: uploader,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
		now:      time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if job.Variables != "" {
		if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
			h.failJob(client, job, apperrors.NewInputParsingFailedError(err))
			return
		}
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
	records, err := h.records.ListTravelRecords(ctx)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_travel_records", err)
	}

	content, err := EncodeCSV(records)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	output := &Output{RecordCount: len(records)}
	upload := h.uploader != nil && (input.Upload == nil || *input.Upload)
	if !upload {
		output.CSV = string(content)
		h.logger.Info("travel plans exported inline", map[string]interface{}{"records": len(records)})
		return output, nil
	}

	name := fmt.Sprintf("travel-plans-%s.csv", h.now().UTC().Format("20060102T150405Z"))
	key, err := h.uploader.Put(ctx, name, content, csvContentType)
	if err != nil {
		return nil, apperrors.NewExportUploadFailedError(err)
	}
	link, err := h.uploader.PresignedURL(ctx, key, h.config.URLExpiry)
	if err != nil {
		return nil, apperrors.NewExportUploadFailedError(err)
	}

	output.ObjectKey = key
	output.DownloadURL = link

	h.logger.Info("travel plans exported", map[string]interface{}{
		"records":   len(records),
		"objectKey": key,
		"bytes":     len(content),
	})
	return output, nil
}

// EncodeCSV writes records under a fixed header, one row per stored plan.
func EncodeCSV(records []models.TravelRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := lo.Map(records, func(r models.TravelRecord, _ int) []string {
		return []string{
			r.Email,
			r.Location,
			strconv.Itoa(r.NumberOfDays),
			r.StartDate.String(),
			r.EndDate.String(),
		}
	})
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
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
