// internal/workers/board/list-applications/models.go
package listapplications

import "application-board/internal/models"

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	Applications []models.ApplicationRecord `json:"applications"`
	Count        int                        `json:"count"`
	// ColumnCounts has one entry per board column, zero included.
	ColumnCounts map[string]int `json:"columnCounts"`
}
