// Package kanban maintains the grouped-by-status board of a user's applications and keeps it
// in step with the backend while the user drags cards between columns.
package kanban

import (
	"fmt"

	"application-board/internal/models"
)

// GroupedBoard maps every status to its ordered column. Treat values as immutable;
// every mutating helper in this package works on a Clone.
type GroupedBoard map[models.Status][]models.ApplicationRecord

// Column is one status group in canonical order.
type Column struct {
	Status  models.Status
	Records []models.ApplicationRecord
}

// Partition groups records by status, keeping input order within each group.
// Every status is present. Records with a status outside the set, and repeated ids, are
// skipped: they have no valid place on the board.
func Partition(records []models.ApplicationRecord) GroupedBoard {
	board := emptyBoard()
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if !rec.Status.Valid() {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		board[rec.Status] = append(board[rec.Status], rec)
	}
	return board
}

func emptyBoard() GroupedBoard {
	board := make(GroupedBoard, len(models.Statuses()))
	for _, s := range models.Statuses() {
		board[s] = []models.ApplicationRecord{}
	}
	return board
}

// Clone deep-copies the column slices.
func (b GroupedBoard) Clone() GroupedBoard {
	out := make(GroupedBoard, len(b))
	for s, recs := range b {
		cp := make([]models.ApplicationRecord, len(recs))
		copy(cp, recs)
		out[s] = cp
	}
	return out
}

// Locate reports the group and index holding id.
func (b GroupedBoard) Locate(id string) (models.Status, int, bool) {
	for _, s := range models.Statuses() {
		for i, rec := range b[s] {
			if rec.ID == id {
				return s, i, true
			}
		}
	}
	return "", -1, false
}

// Record returns the record with id, if present.
func (b GroupedBoard) Record(id string) (models.ApplicationRecord, bool) {
	s, i, ok := b.Locate(id)
	if !ok {
		return models.ApplicationRecord{}, false
	}
	return b[s][i], true
}

func (b GroupedBoard) Columns() []Column {
	cols := make([]Column, 0, len(models.Statuses()))
	for _, s := range models.Statuses() {
		cols = append(cols, Column{Status: s, Records: b[s]})
	}
	return cols
}

// IDs returns every record id in column order.
func (b GroupedBoard) IDs() []string {
	ids := make([]string, 0, b.Len())
	for _, s := range models.Statuses() {
		for _, rec := range b[s] {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func (b GroupedBoard) Len() int {
	n := 0
	for _, recs := range b {
		n += len(recs)
	}
	return n
}

// Order returns the ids of one column.
func (b GroupedBoard) Order(s models.Status) []string {
	ids := make([]string, 0, len(b[s]))
	for _, rec := range b[s] {
		ids = append(ids, rec.ID)
	}
	return ids
}

// CheckCoverage verifies every id in want appears exactly once, nothing else appears,
// every status key exists and every record sits in the group matching its status.
func (b GroupedBoard) CheckCoverage(want []string) error {
	expected := make(map[string]int, len(want))
	for _, id := range want {
		expected[id]++
	}

	for _, s := range models.Statuses() {
		recs, ok := b[s]
		if !ok {
			return fmt.Errorf("status %s missing from board", s)
		}
		for _, rec := range recs {
			if rec.Status != s {
				return fmt.Errorf("record %s has status %s but sits in %s", rec.ID, rec.Status, s)
			}
			expected[rec.ID]--
		}
	}
	if len(b) != len(models.Statuses()) {
		return fmt.Errorf("board has %d groups, want %d", len(b), len(models.Statuses()))
	}

	for id, n := range expected {
		switch {
		case n > 0:
			return fmt.Errorf("record %s lost from board", id)
		case n < 0:
			return fmt.Errorf("record %s duplicated or unknown on board", id)
		}
	}
	return nil
}

// Equal compares grouping and order by id and status.
func (b GroupedBoard) Equal(other GroupedBoard) bool {
	for _, s := range models.Statuses() {
		x, y := b[s], other[s]
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].ID != y[i].ID || x[i].Status != y[i].Status {
				return false
			}
		}
	}
	return true
}

// remove deletes the record at index i of s in place. Caller owns the board.
func (b GroupedBoard) remove(s models.Status, i int) models.ApplicationRecord {
	recs := b[s]
	rec := recs[i]
	out := make([]models.ApplicationRecord, 0, len(recs)-1)
	out = append(out, recs[:i]...)
	out = append(out, recs[i+1:]...)
	b[s] = out
	return rec
}

// insert places rec into s at index i clamped to bounds; i < 0 appends. Returns the final index.
func (b GroupedBoard) insert(s models.Status, i int, rec models.ApplicationRecord) int {
	recs := b[s]
	if i < 0 || i > len(recs) {
		i = len(recs)
	}
	out := make([]models.ApplicationRecord, 0, len(recs)+1)
	out = append(out, recs[:i]...)
	out = append(out, rec)
	out = append(out, recs[i:]...)
	b[s] = out
	return i
}
