// Package activity keeps the status-change log behind the dashboard's recent activity list.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"application-board/internal/common/database"
	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/models"

	"github.com/google/uuid"
)

// Event is one confirmed status change.
type Event struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"applicationId"`
	UserID        string        `json:"userId"`
	CompanyName   string        `json:"companyName"`
	JobTitle      string        `json:"jobTitle"`
	Status        models.Status `json:"status"`
	At            time.Time     `json:"at"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "keyword"},
      "applicationId": {"type": "keyword"},
      "userId":        {"type": "keyword"},
      "companyName":   {"type": "text"},
      "jobTitle":      {"type": "text"},
      "status":        {"type": "keyword"},
      "at":            {"type": "date"}
    }
  }
}`

type Recorder struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(es *database.ElasticsearchClient, index string, log logger.Logger) *Recorder {
	return &Recorder{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "activity-recorder", "index": index}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndex creates the activity index if it is missing.
func (r *Recorder) EnsureIndex(ctx context.Context) error {
	if err := r.es.EnsureIndex(ctx, r.index, indexMapping); err != nil {
		return errors.NewActivityIndexFailedError(err)
	}
	return nil
}

// Record indexes a status change for rec.
func (r *Recorder) Record(ctx context.Context, rec models.ApplicationRecord) (*Event, error) {
	ev := Event{
		ID:            uuid.NewString(),
		ApplicationID: rec.ID,
		UserID:        rec.UserID,
		CompanyName:   rec.CompanyName,
		JobTitle:      rec.JobTitle,
		Status:        rec.Status,
		At:            r.now(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.NewActivityIndexFailedError(err)
	}

	client := r.es.Client
	res, err := client.Index(r.index, bytes.NewReader(body),
		client.Index.WithContext(ctx),
		client.Index.WithDocumentID(ev.ID),
	)
	if err != nil {
		return nil, errors.NewActivityIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewActivityIndexFailedError(fmt.Errorf("index response: %s", res.Status()))
	}

	r.logger.Debug("activity recorded", map[string]interface{}{
		"applicationId": rec.ID,
		"status":        string(rec.Status),
	})
	return &ev, nil
}

// Recent returns the user's latest status changes, newest first.
func (r *Recorder) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	query := map[string]interface{}{
		"size": limit,
		"sort": []interface{}{
			map[string]interface{}{"at": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"term": map[string]interface{}{"userId": userID},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.NewActivityIndexFailedError(err)
	}

	client := r.es.Client
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(r.index),
		client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.NewActivityIndexFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewActivityIndexFailedError(fmt.Errorf("search response: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewActivityIndexFailedError(err)
	}

	events := make([]Event, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		events = append(events, h.Source)
	}
	return events, nil
}
