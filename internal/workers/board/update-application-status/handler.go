// internal/workers/board/update-application-status/handler.go
package updateapplicationstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/common/metrics"
	"application-board/internal/common/validation"
	"application-board/internal/models"
	"application-board/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-application-status"
)

// Handler persists one status change for the update-application-status process.
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

	if res := validation.ValidateInput(input.toMap(), validation.UpdateStatusInputSchema()); !res.Valid {
		return nil, errors.NewValidationError("Invalid status update", res.Error())
	}

	status, err := models.ParseStatus(input.Status)
	if err != nil {
		return nil, errors.NewStatusInvalidError(input.Status)
	}

	rec, err := h.repo.UpdateStatus(ctx, input.ApplicationID, status)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewPersistenceError(input.ApplicationID, ctx.Err())
		}
		return nil, err
	}

	h.logger.Info("status persisted", map[string]interface{}{
		"applicationId": rec.ID,
		"status":        string(rec.Status),
		"userId":        input.UserID,
	})

	return &Output{
		Application: rec,
		UpdatedAt:   rec.UpdatedAt.UTC().Format(time.RFC3339),
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
	// the job context may already be done; report on a fresh one
	h.errorHandler.HandleJobError(context.WithoutCancel(ctx), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
