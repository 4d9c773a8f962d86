package activity

import (
	"context"

	"application-board/internal/common/logger"
	"application-board/internal/models"
	"application-board/internal/store"
)

// RecordingRepository records every successful status write. Recording failures are
// logged only: the write itself already succeeded.
type RecordingRepository struct {
	store.Repository
	recorder *Recorder
	logger   logger.Logger
}

func WrapRepository(next store.Repository, recorder *Recorder, log logger.Logger) *RecordingRepository {
	return &RecordingRepository{Repository: next, recorder: recorder, logger: log}
}

func (r *RecordingRepository) UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error) {
	rec, err := r.Repository.UpdateStatus(ctx, applicationID, status)
	if err != nil {
		return nil, err
	}
	if _, err := r.recorder.Record(ctx, *rec); err != nil {
		r.logger.Warn("failed to record status activity", map[string]interface{}{
			"applicationId": applicationID,
			"error":         err,
		})
	}
	return rec, nil
}
