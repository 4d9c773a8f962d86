// Package store is the data-access layer for application records.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/models"
)

// Repository lists a user's applications and persists status changes.
type Repository interface {
	// List returns the user's applications, newest date_applied first. An unknown user yields an empty list.
	List(ctx context.Context, userID string) ([]models.ApplicationRecord, error)
	// UpdateStatus sets one application's status and returns the stored row.
	UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error)
}

const listQuery = `
	SELECT a.uuid, u.clerk_id, a.company_name, a.job_title, a.status,
	       a.date_applied, a.created_at, a.updated_at
	FROM applications a
	JOIN users u ON u.uuid = a.user_id
	WHERE u.clerk_id = $1
	ORDER BY a.date_applied DESC NULLS LAST, a.created_at DESC`

const updateStatusQuery = `
	UPDATE applications a
	SET status = $2, updated_at = $3
	FROM users u
	WHERE a.uuid = $1 AND u.uuid = a.user_id
	RETURNING a.uuid, u.clerk_id, a.company_name, a.job_title, a.status,
	          a.date_applied, a.created_at, a.updated_at`

// PostgresRepository reads and writes the applications table.
type PostgresRepository struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresRepository(db *sql.DB, log logger.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-repository"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (models.ApplicationRecord, string, error) {
	var (
		rec         models.ApplicationRecord
		status      string
		dateApplied sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.CompanyName, &rec.JobTitle, &status,
		&dateApplied, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return rec, "", err
	}
	if dateApplied.Valid {
		t := dateApplied.Time
		rec.DateApplied = &t
	}
	rec.Status = models.Status(status)
	return rec, status, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]models.ApplicationRecord, error) {
	rows, err := r.db.QueryContext(ctx, listQuery, userID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_applications", err)
	}
	defer rows.Close()

	records := make([]models.ApplicationRecord, 0)
	for rows.Next() {
		rec, raw, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_applications", err)
		}
		// A row with a status outside the set has no column to live in.
		if !rec.Status.Valid() {
			r.logger.Warn("skipping application with unknown status", map[string]interface{}{
				"applicationId": rec.ID,
				"status":        raw,
			})
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_applications", err)
	}

	r.logger.Debug("listed applications", map[string]interface{}{
		"userId": userID,
		"count":  len(records),
	})
	return records, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error) {
	if !status.Valid() {
		return nil, errors.NewStatusInvalidError(string(status))
	}

	row := r.db.QueryRowContext(ctx, updateStatusQuery, applicationID, string(status), r.now())
	rec, _, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewApplicationNotFoundError(applicationID)
		}
		return nil, errors.NewQueryExecutionFailedError("update_application_status", err)
	}

	r.logger.Info("application status updated", map[string]interface{}{
		"applicationId": applicationID,
		"status":        string(status),
	})
	return &rec, nil
}
