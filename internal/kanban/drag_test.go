package kanban

import (
	"testing"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDragController_SingleActiveSession(t *testing.T) {
	c := NewDragController(logger.NewTestLogger(t))

	s, err := c.Start("j1", models.StatusToApply)
	require.NoError(t, err)
	assert.Equal(t, "j1", s.ID())

	_, err = c.Start("j2", models.StatusApplied)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDragInProgress)
	assert.Same(t, s, c.Active())
}

func TestDragController_EndReturnsFinalTarget(t *testing.T) {
	c := NewDragController(logger.NewTestLogger(t))
	s, err := c.Start("j1", models.StatusToApply)
	require.NoError(t, err)

	s.UpdateTarget(GroupTarget(models.StatusOffered))
	s.UpdateTarget(RecordTarget("j7", models.StatusApplied))

	res, ok := c.End()
	require.True(t, ok)
	assert.Equal(t, DragResult{ID: "j1", Source: models.StatusToApply, Target: RecordTarget("j7", models.StatusApplied)}, res)
	assert.Nil(t, c.Active())

	_, ok = c.End()
	assert.False(t, ok)
}

func TestDragController_ReleaseOutsideDropZones(t *testing.T) {
	c := NewDragController(logger.NewTestLogger(t))
	s, err := c.Start("j1", models.StatusToApply)
	require.NoError(t, err)

	s.UpdateTarget(GroupTarget(models.StatusApplied))
	s.UpdateTarget(Target{})

	_, ok := c.End()
	assert.False(t, ok)
	assert.Nil(t, c.Active())
}

func TestDragController_CancelAndStaleSession(t *testing.T) {
	c := NewDragController(logger.NewTestLogger(t))
	old, err := c.Start("j1", models.StatusToApply)
	require.NoError(t, err)
	c.Cancel()
	assert.Nil(t, c.Active())

	fresh, err := c.Start("j2", models.StatusApplied)
	require.NoError(t, err)

	old.UpdateTarget(GroupTarget(models.StatusRejected))
	assert.Equal(t, Target{}, fresh.Target())
}

func TestParseTarget(t *testing.T) {
	assert.Equal(t, Target{}, ParseTarget("", "Applied"))
	assert.Equal(t, GroupTarget(models.StatusOffered), ParseTarget("Offered", ""))
	assert.Equal(t, RecordTarget("c0ffee", models.StatusApplied), ParseTarget("c0ffee", "Applied"))
	assert.False(t, ParseTarget("", "").Defined())
}
