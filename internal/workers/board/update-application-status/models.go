// internal/workers/board/update-application-status/models.go
package updateapplicationstatus

import "application-board/internal/models"

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	UserID        string `json:"userId,omitempty"`
}

func (in *Input) toMap() map[string]interface{} {
	m := map[string]interface{}{
		"applicationId": in.ApplicationID,
		"status":        in.Status,
	}
	if in.UserID != "" {
		m["userId"] = in.UserID
	}
	return m
}

type Output struct {
	Application *models.ApplicationRecord `json:"application"`
	UpdatedAt   string                    `json:"updatedAt"`
}
