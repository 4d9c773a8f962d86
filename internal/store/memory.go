package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/models"
)

// MemoryRepository is an in-process Repository for local replays and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]models.ApplicationRecord
	failing map[string]int
	latency time.Duration
	now     func() time.Time
}

func NewMemoryRepository(records ...models.ApplicationRecord) *MemoryRepository {
	m := &MemoryRepository{
		records: make(map[string]models.ApplicationRecord, len(records)),
		failing: make(map[string]int),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
	}
	return m
}

// SetLatency delays every write by d, honoring context cancellation.
func (m *MemoryRepository) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// FailNext makes the next n writes for id fail with a query error.
func (m *MemoryRepository) FailNext(id string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[id] += n
}

// Delete removes a record, as another session would.
func (m *MemoryRepository) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

// List orders like the Postgres query: newest date_applied first, undated last, then created_at.
func (m *MemoryRepository) List(_ context.Context, userID string) ([]models.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ApplicationRecord, 0, len(m.records))
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.DateApplied != nil && b.DateApplied != nil && !a.DateApplied.Equal(*b.DateApplied):
			return a.DateApplied.After(*b.DateApplied)
		case a.DateApplied != nil && b.DateApplied == nil:
			return true
		case a.DateApplied == nil && b.DateApplied != nil:
			return false
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.ID < b.ID
		}
	})
	return out, nil
}

func (m *MemoryRepository) UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error) {
	if !status.Valid() {
		return nil, errors.NewStatusInvalidError(string(status))
	}

	m.mu.Lock()
	latency := m.latency
	m.mu.Unlock()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, errors.NewPersistenceError(applicationID, ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing[applicationID] > 0 {
		m.failing[applicationID]--
		return nil, errors.NewQueryExecutionFailedError("update_application_status",
			fmt.Errorf("injected failure for %s", applicationID))
	}
	rec, ok := m.records[applicationID]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(applicationID)
	}
	rec.Status = status
	rec.UpdatedAt = m.now()
	m.records[applicationID] = rec
	return &rec, nil
}
