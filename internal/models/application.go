// internal/models/application.go
package models

import (
	"fmt"
	"time"
)

// Status is an application lifecycle state. The set is closed and doubles as the
// list of kanban column identifiers.
type Status string

const (
	StatusToApply      Status = "To_Apply"
	StatusApplied      Status = "Applied"
	StatusInterviewing Status = "Interviewing"
	StatusOffered      Status = "Offered"
	StatusRejected     Status = "Rejected"
	StatusAccepted     Status = "Accepted"
	StatusNoResponse   Status = "No_Response"
)

var statusOrder = []Status{
	StatusToApply,
	StatusApplied,
	StatusInterviewing,
	StatusOffered,
	StatusRejected,
	StatusAccepted,
	StatusNoResponse,
}

// Statuses returns the closed status set in column order.
func Statuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// StatusNames returns the status set as plain strings, for schemas and enum checks.
func StatusNames() []string {
	out := make([]string, len(statusOrder))
	for i, s := range statusOrder {
		out[i] = string(s)
	}
	return out
}

func (s Status) Valid() bool {
	for _, known := range statusOrder {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts raw input into a Status, rejecting anything outside the set.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown application status %q", raw)
	}
	return s, nil
}

// ApplicationRecord is one tracked job application. The board never edits anything
// but Status, and only on its local copy.
type ApplicationRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	CompanyName string     `json:"companyName"`
	JobTitle    string     `json:"jobTitle"`
	Status      Status     `json:"status"`
	DateApplied *time.Time `json:"dateApplied,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
