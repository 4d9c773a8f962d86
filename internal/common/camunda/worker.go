// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"application-board/internal/common/config"
	"application-board/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// HandlerFunc is the signature every board job handler exposes as Handle.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// Instrument wraps h with the job duration histogram.
func Instrument(taskType string, h HandlerFunc) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		defer func() {
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()
		h(client, job)
	}
}

// StartWorker opens a job worker for taskType unless it is disabled. The returned worker is nil when disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, h HandlerFunc, log *zap.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, h))).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return jw
}
