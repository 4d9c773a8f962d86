package kanban

import (
	"fmt"
	"math/rand"
	"testing"

	"application-board/internal/common/errors"
	"application-board/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeToApply() GroupedBoard {
	return Partition([]models.ApplicationRecord{
		rec("j1", models.StatusToApply),
		rec("j2", models.StatusToApply),
		rec("j3", models.StatusToApply),
	})
}

func TestApplyDrag_ReorderOntoCard(t *testing.T) {
	board := threeToApply()

	next, tr, err := ApplyDrag(board, DragResult{ID: "j3", Source: models.StatusToApply, Target: RecordTarget("j1", models.StatusToApply)})
	require.NoError(t, err)

	assert.Equal(t, OpReorder, tr.Op)
	assert.Equal(t, []string{"j3", "j1", "j2"}, next.Order(models.StatusToApply))
	assert.Equal(t, []string{"j1", "j2", "j3"}, board.Order(models.StatusToApply), "input board must not change")
}

func TestApplyDrag_ReorderDownward(t *testing.T) {
	next, tr, err := ApplyDrag(threeToApply(), DragResult{ID: "j1", Source: models.StatusToApply, Target: RecordTarget("j3", models.StatusToApply)})
	require.NoError(t, err)
	assert.Equal(t, OpReorder, tr.Op)
	assert.Equal(t, []string{"j2", "j3", "j1"}, next.Order(models.StatusToApply))
	assert.Equal(t, 2, tr.ToIndex)
}

func TestApplyDrag_ReorderToOwnPositionIsNoop(t *testing.T) {
	board := threeToApply()

	cases := map[string]Target{
		"onto itself":           RecordTarget("j2", models.StatusToApply),
		"last card onto column": GroupTarget(models.StatusToApply),
	}
	ids := map[string]string{"onto itself": "j2", "last card onto column": "j3"}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			next, tr, err := ApplyDrag(board, DragResult{ID: ids[name], Source: models.StatusToApply, Target: target})
			require.NoError(t, err)
			assert.Equal(t, OpNone, tr.Op)
			assert.True(t, next.Equal(board))
		})
	}
}

func TestApplyDrag_GroupTargetSameColumnMovesToEnd(t *testing.T) {
	next, tr, err := ApplyDrag(threeToApply(), DragResult{ID: "j1", Source: models.StatusToApply, Target: GroupTarget(models.StatusToApply)})
	require.NoError(t, err)
	assert.Equal(t, OpReorder, tr.Op)
	assert.Equal(t, []string{"j2", "j3", "j1"}, next.Order(models.StatusToApply))
}

func TestApplyDrag_MoveToColumnAppends(t *testing.T) {
	board := Partition([]models.ApplicationRecord{
		rec("j1", models.StatusToApply),
		rec("j2", models.StatusToApply),
		rec("j9", models.StatusApplied),
	})

	next, tr, err := ApplyDrag(board, DragResult{ID: "j1", Source: models.StatusToApply, Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)

	assert.Equal(t, Transition{Op: OpMove, ID: "j1", From: models.StatusToApply, FromIndex: 0, To: models.StatusApplied, ToIndex: 1}, tr)
	assert.Equal(t, []string{"j2"}, next.Order(models.StatusToApply))
	assert.Equal(t, []string{"j9", "j1"}, next.Order(models.StatusApplied))

	moved, ok := next.Record("j1")
	require.True(t, ok)
	assert.Equal(t, models.StatusApplied, moved.Status)

	original, _ := board.Record("j1")
	assert.Equal(t, models.StatusToApply, original.Status)
}

func TestApplyDrag_MoveOntoCardInsertsBeforeIt(t *testing.T) {
	board := Partition([]models.ApplicationRecord{
		rec("j1", models.StatusToApply),
		rec("a1", models.StatusApplied),
		rec("a2", models.StatusApplied),
	})

	next, tr, err := ApplyDrag(board, DragResult{ID: "j1", Source: models.StatusToApply, Target: RecordTarget("a2", models.StatusApplied)})
	require.NoError(t, err)
	assert.Equal(t, OpMove, tr.Op)
	assert.Equal(t, []string{"a1", "j1", "a2"}, next.Order(models.StatusApplied))
}

func TestApplyDrag_StaleSourceUsesRealPosition(t *testing.T) {
	board := Partition([]models.ApplicationRecord{rec("j1", models.StatusOffered)})

	next, tr, err := ApplyDrag(board, DragResult{ID: "j1", Source: models.StatusToApply, Target: GroupTarget(models.StatusRejected)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffered, tr.From)
	assert.Equal(t, []string{"j1"}, next.Order(models.StatusRejected))
}

func TestApplyDrag_StaleReferences(t *testing.T) {
	board := threeToApply()

	_, _, err := ApplyDrag(board, DragResult{ID: "gone", Source: models.StatusToApply, Target: GroupTarget(models.StatusApplied)})
	assert.ErrorIs(t, err, errors.ErrStaleReference)

	_, _, err = ApplyDrag(board, DragResult{ID: "j1", Source: models.StatusToApply, Target: RecordTarget("gone", "")})
	assert.ErrorIs(t, err, errors.ErrStaleReference)
}

func TestApplyDrag_VanishedTargetCardFallsBackToColumnEnd(t *testing.T) {
	board := Partition([]models.ApplicationRecord{
		rec("j1", models.StatusToApply),
		rec("a1", models.StatusApplied),
	})

	next, tr, err := ApplyDrag(board, DragResult{ID: "j1", Source: models.StatusToApply, Target: RecordTarget("deleted", models.StatusApplied)})
	require.NoError(t, err)
	assert.Equal(t, OpMove, tr.Op)
	assert.Equal(t, []string{"a1", "j1"}, next.Order(models.StatusApplied))
}

func TestApplyDrag_UnknownStatusIsValidationFault(t *testing.T) {
	board := threeToApply()

	for _, target := range []Target{GroupTarget("Ghosted"), RecordTarget("deleted", "Ghosted")} {
		next, _, err := ApplyDrag(board, DragResult{ID: "j1", Source: models.StatusToApply, Target: target})
		assert.ErrorIs(t, err, errors.ErrStatusInvalid)
		assert.True(t, next.Equal(board))
	}
}

// Every drop, valid or not, leaves each known record in exactly one column.
func TestApplyDrag_CoverageHoldsForRandomDrops(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := models.Statuses()

	records := make([]models.ApplicationRecord, 0, 12)
	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("j%d", i)
		ids = append(ids, id)
		records = append(records, rec(id, statuses[rng.Intn(len(statuses))]))
	}
	board := Partition(records)

	for step := 0; step < 500; step++ {
		id := ids[rng.Intn(len(ids))]
		if rng.Intn(10) == 0 {
			id = "ghost"
		}
		var target Target
		switch rng.Intn(3) {
		case 0:
			target = GroupTarget(statuses[rng.Intn(len(statuses))])
		case 1:
			target = RecordTarget(ids[rng.Intn(len(ids))], "")
		default:
			target = RecordTarget("ghost", statuses[rng.Intn(len(statuses))])
		}

		next, tr, err := ApplyDrag(board, DragResult{ID: id, Target: target})
		if err != nil {
			require.ErrorIs(t, err, errors.ErrStaleReference, "step %d", step)
			require.True(t, next.Equal(board))
		}
		require.NoError(t, next.CheckCoverage(ids), "step %d: %+v", step, tr)
		if tr.Op == OpMove {
			moved, ok := next.Record(id)
			require.True(t, ok)
			require.Equal(t, tr.To, moved.Status)
			require.NotContains(t, next.Order(tr.From), id)
		}
		board = next
	}
}
