package listapplications

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{
	"uuid", "clerk_id", "company_name", "job_title", "status",
	"date_applied", "created_at", "updated_at",
}

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	return NewHandler(createTestConfig(), store.NewPostgresRepository(db, log), log), mock
}

func TestHandler_Execute_Success(t *testing.T) {
	handler, mock := createTestHandler(t)
	applied := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM applications a JOIN users u`).
		WithArgs("user_2abc").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("a1", "user_2abc", "Acme", "Engineer", "Applied", applied, created, created).
			AddRow("a2", "user_2abc", "Globex", "SRE", "Applied", applied, created, created).
			AddRow("a3", "user_2abc", "Initech", "Analyst", "Offered", nil, created, created))

	output, err := handler.Execute(context.Background(), &Input{UserID: "user_2abc"})

	require.NoError(t, err)
	assert.Equal(t, 3, output.Count)
	require.Len(t, output.Applications, 3)
	assert.Equal(t, "a1", output.Applications[0].ID)
	assert.Equal(t, 2, output.ColumnCounts["Applied"])
	assert.Equal(t, 1, output.ColumnCounts["Offered"])
	assert.Equal(t, 0, output.ColumnCounts["Rejected"])
	assert.Len(t, output.ColumnCounts, 7)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnknownUser(t *testing.T) {
	handler, mock := createTestHandler(t)
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	output, err := handler.Execute(context.Background(), &Input{UserID: "nobody"})

	require.NoError(t, err)
	assert.Equal(t, 0, output.Count)
	assert.NotNil(t, output.Applications)
}

func TestHandler_Execute_MissingUser(t *testing.T) {
	handler, mock := createTestHandler(t)

	_, err := handler.Execute(context.Background(), &Input{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStatusInvalid, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_QueryFailure(t *testing.T) {
	handler, mock := createTestHandler(t)
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("user_2abc").
		WillReturnError(sql.ErrConnDone)

	_, err := handler.Execute(context.Background(), &Input{UserID: "user_2abc"})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.CodeOf(err))
}
