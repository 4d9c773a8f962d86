// internal/workers/board/list-applications/handler.go
package listapplications

import (
	"context"
	"encoding/json"
	"fmt"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/common/metrics"
	"application-board/internal/common/validation"
	"application-board/internal/kanban"
	"application-board/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "list-applications"
)

type Handler struct {
	config       *Config
	repo         store.Repository
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, repo store.Repository, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		repo:         repo,
		logger:       l,
		errorHandler: errors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewValidationError("Invalid job variables", fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	res := validation.ValidateInput(map[string]interface{}{"userId": input.UserID}, validation.ListApplicationsInputSchema())
	if !res.Valid {
		return nil, errors.NewValidationError("Invalid list request", res.Error())
	}

	records, err := h.repo.List(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, col := range kanban.Partition(records).Columns() {
		counts[string(col.Status)] = len(col.Records)
	}

	return &Output{
		Applications: records,
		Count:        len(records),
		ColumnCounts: counts,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(context.WithoutCancel(ctx), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
