// Package replay drives a board through a scripted sequence of drag gestures.
package replay

import (
	"fmt"
	"io"
	"time"

	"application-board/internal/models"

	"gopkg.in/yaml.v3"
)

// Script is a YAML gesture script.
//
//	user: user_2abc
//	seed:
//	  - {id: a1, company: Acme, title: Engineer, status: Applied, applied: 2026-02-01}
//	steps:
//	  - {drag: a1, over: Interviewing, wait: true}
//	  - {drag: a1, over: a2, container: Offered, fail: 1}
type Script struct {
	UserID string       `yaml:"user"`
	Seed   []SeedRecord `yaml:"seed"`
	Steps  []Step       `yaml:"steps"`
}

type SeedRecord struct {
	ID      string `yaml:"id"`
	Company string `yaml:"company"`
	Title   string `yaml:"title"`
	Status  string `yaml:"status"`
	Applied string `yaml:"applied"` // 2006-01-02, optional
}

// Step is one gesture, plus optional backend fault injection that applies before it.
type Step struct {
	Drag      string `yaml:"drag"`
	Over      string `yaml:"over"`
	Container string `yaml:"container"`
	Wait      bool   `yaml:"wait"`

	Fail   int    `yaml:"fail"`   // fail the next n writes for Drag
	Delete string `yaml:"delete"` // remove a record server-side
	Reload bool   `yaml:"reload"`
	Pause  string `yaml:"pause"` // duration to sleep after the step
}

// Decode reads and checks a script.
func Decode(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	if s.UserID == "" {
		return fmt.Errorf("script: user is required")
	}
	for i, rec := range s.Seed {
		if rec.ID == "" {
			return fmt.Errorf("script: seed[%d]: id is required", i)
		}
		if !models.Status(rec.Status).Valid() {
			return fmt.Errorf("script: seed[%d]: unknown status %q", i, rec.Status)
		}
		if rec.Applied != "" {
			if _, err := time.Parse("2006-01-02", rec.Applied); err != nil {
				return fmt.Errorf("script: seed[%d]: applied: %w", i, err)
			}
		}
	}
	for i, st := range s.Steps {
		if st.Pause != "" {
			if _, err := time.ParseDuration(st.Pause); err != nil {
				return fmt.Errorf("script: steps[%d]: pause: %w", i, err)
			}
		}
	}
	return nil
}

// Records converts the seed into application records owned by the script user.
func (s *Script) Records(now time.Time) []models.ApplicationRecord {
	out := make([]models.ApplicationRecord, 0, len(s.Seed))
	for i, rec := range s.Seed {
		r := models.ApplicationRecord{
			ID:          rec.ID,
			UserID:      s.UserID,
			CompanyName: rec.Company,
			JobTitle:    rec.Title,
			Status:      models.Status(rec.Status),
			// keep seed order stable among undated records
			CreatedAt: now.Add(-time.Duration(i) * time.Second),
			UpdatedAt: now,
		}
		if rec.Applied != "" {
			d, _ := time.Parse("2006-01-02", rec.Applied)
			r.DateApplied = &d
		}
		out = append(out, r)
	}
	return out
}
