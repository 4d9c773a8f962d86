// internal/common/camunda/gateway.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// InstanceRunner starts a process instance and waits for its result variables.
type InstanceRunner interface {
	RunWithResult(ctx context.Context, processID string, variables interface{}) (string, error)
}

type zeebeRunner struct {
	client zbc.Client
	retry  *RetryConfig
}

// NewInstanceRunner runs processes on a live broker, retrying transient gateway errors.
func NewInstanceRunner(c *Client) InstanceRunner {
	return &zeebeRunner{client: c.GetClient(), retry: c.config.RetryConfig}
}

func (r *zeebeRunner) RunWithResult(ctx context.Context, processID string, variables interface{}) (string, error) {
	return ExecuteWithRetry(ctx, r.retry, "create-instance:"+processID, func(ctx context.Context) (string, error) {
		cmd, err := r.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(variables)
		if err != nil {
			return "", err
		}
		resp, err := cmd.WithResult().Send(ctx)
		if err != nil {
			return "", err
		}
		return resp.GetVariables(), nil
	})
}

// Processes names the BPMN processes backing the board operations.
type Processes struct {
	ListApplications string
	UpdateStatus     string
}

// BoardGateway serves the board's List and UpdateStatus through Zeebe processes
// whose service tasks are handled by the board workers.
type BoardGateway struct {
	runner    InstanceRunner
	processes Processes
	logger    logger.Logger
}

func NewBoardGateway(runner InstanceRunner, processes Processes, log logger.Logger) *BoardGateway {
	return &BoardGateway{
		runner:    runner,
		processes: processes,
		logger:    log.WithFields(map[string]interface{}{"component": "board-gateway"}),
	}
}

type processResult struct {
	Applications []models.ApplicationRecord `json:"applications"`
	Application  *models.ApplicationRecord  `json:"application"`
	ErrorCode    string                     `json:"errorCode"`
	ErrorMessage string                     `json:"errorMessage"`
}

func (g *BoardGateway) run(ctx context.Context, processID string, vars map[string]interface{}) (*processResult, error) {
	start := time.Now()
	raw, err := g.runner.RunWithResult(ctx, processID, vars)
	if err != nil {
		return nil, err
	}

	var res processResult
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return nil, errors.NewProcessExecutionFailedError(processID, fmt.Errorf("decode result: %w", err))
		}
	}
	g.logger.Debug("process completed", map[string]interface{}{
		"processId":   processID,
		"duration_ms": time.Since(start).Milliseconds(),
		"errorCode":   res.ErrorCode,
	})
	return &res, nil
}

// List returns the user's applications as computed by the list process.
func (g *BoardGateway) List(ctx context.Context, userID string) ([]models.ApplicationRecord, error) {
	res, err := g.run(ctx, g.processes.ListApplications, map[string]interface{}{"userId": userID})
	if err != nil {
		return nil, err
	}
	if res.ErrorCode != "" {
		return nil, errors.NewProcessExecutionFailedError(g.processes.ListApplications,
			fmt.Errorf("%s: %s", res.ErrorCode, res.ErrorMessage))
	}

	records := make([]models.ApplicationRecord, 0, len(res.Applications))
	for _, rec := range res.Applications {
		if !rec.Status.Valid() {
			g.logger.Warn("skipping application with unknown status", map[string]interface{}{
				"applicationId": rec.ID,
				"status":        string(rec.Status),
			})
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpdateStatus runs the status process and returns the stored record.
func (g *BoardGateway) UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error) {
	if !status.Valid() {
		return nil, errors.NewStatusInvalidError(string(status))
	}

	res, err := g.run(ctx, g.processes.UpdateStatus, map[string]interface{}{
		"applicationId": applicationID,
		"status":        string(status),
	})
	if err != nil {
		return nil, errors.NewPersistenceError(applicationID, err)
	}

	switch errors.ErrorCode(res.ErrorCode) {
	case "":
	case errors.ErrCodeApplicationNotFound:
		return nil, errors.NewApplicationNotFoundError(applicationID)
	case errors.ErrCodeStatusInvalid:
		return nil, errors.NewStatusInvalidError(string(status))
	default:
		return nil, errors.NewPersistenceError(applicationID,
			fmt.Errorf("%s: %s", res.ErrorCode, res.ErrorMessage))
	}

	if res.Application == nil {
		return nil, errors.NewPersistenceError(applicationID, fmt.Errorf("process returned no application"))
	}
	return res.Application, nil
}
