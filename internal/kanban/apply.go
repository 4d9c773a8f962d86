package kanban

import (
	"application-board/internal/common/errors"
	"application-board/internal/models"
)

// Op classifies the effect of a drop.
type Op int

const (
	OpNone Op = iota
	// OpReorder changes position inside one column. Local only.
	OpReorder
	// OpMove changes column, and therefore status. Needs a durable write.
	OpMove
)

func (o Op) String() string {
	switch o {
	case OpReorder:
		return "reorder"
	case OpMove:
		return "move"
	default:
		return "noop"
	}
}

// Transition describes what ApplyDrag did.
type Transition struct {
	Op        Op
	ID        string
	From      models.Status
	FromIndex int
	To        models.Status
	ToIndex   int
}

// ApplyDrag computes the board after a drop. It never modifies board. On a no-op or an
// error the returned board is board itself.
//
// Errors: STALE_REFERENCE when the dragged card is no longer on the board (or a card target
// is gone without a column hint), STATUS_INVALID when the target names no known column.
func ApplyDrag(board GroupedBoard, drag DragResult) (GroupedBoard, Transition, error) {
	// The card's real position wins over the drag's recorded source, which may be stale.
	from, fromIndex, ok := board.Locate(drag.ID)
	if !ok {
		return board, Transition{ID: drag.ID}, errors.NewStaleReferenceError(drag.ID)
	}
	tr := Transition{ID: drag.ID, From: from, FromIndex: fromIndex, To: from, ToIndex: fromIndex}

	to, toIndex, err := resolveTarget(board, drag.Target)
	if err != nil {
		return board, tr, err
	}
	if to == from && (toIndex == fromIndex || drag.Target.RecordID == drag.ID) {
		return board, tr, nil
	}

	next := board.Clone()
	rec := next.remove(from, fromIndex)
	tr.To = to

	if to == from {
		tr.ToIndex = next.insert(to, toIndex, rec)
		if tr.ToIndex == fromIndex {
			return board, Transition{ID: drag.ID, From: from, FromIndex: fromIndex, To: from, ToIndex: fromIndex}, nil
		}
		tr.Op = OpReorder
		return next, tr, nil
	}

	rec.Status = to
	tr.ToIndex = next.insert(to, toIndex, rec)
	tr.Op = OpMove
	return next, tr, nil
}

func resolveTarget(board GroupedBoard, t Target) (models.Status, int, error) {
	switch t.Kind {
	case TargetGroup:
		if !t.Status.Valid() {
			return "", 0, errors.NewStatusInvalidError(string(t.Status))
		}
		return t.Status, len(board[t.Status]), nil

	case TargetRecord:
		if s, i, ok := board.Locate(t.RecordID); ok {
			return s, i, nil
		}
		// Card vanished under the pointer: fall back to the end of the column it was in.
		if t.Status == "" {
			return "", 0, errors.NewStaleReferenceError(t.RecordID)
		}
		if !t.Status.Valid() {
			return "", 0, errors.NewStatusInvalidError(string(t.Status))
		}
		return t.Status, len(board[t.Status]), nil

	default:
		return "", 0, errors.NewStaleReferenceError("")
	}
}
