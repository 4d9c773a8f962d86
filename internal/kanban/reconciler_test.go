package kanban

import (
	"context"
	"sync"
	"testing"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/kanban/mutation"
	"application-board/internal/models"
	"application-board/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory store. With gate set, every write waits for a token.
type fakeBackend struct {
	mu        sync.Mutex
	records   []models.ApplicationRecord
	fail      map[models.Status]error
	writes    []models.Status
	listCalls int
	gate      chan struct{}
	started   chan models.Status
}

func newFakeBackend(records ...models.ApplicationRecord) *fakeBackend {
	return &fakeBackend{
		records: records,
		fail:    make(map[models.Status]error),
		started: make(chan models.Status, 32),
	}
}

func (f *fakeBackend) List(_ context.Context, _ string) ([]models.ApplicationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]models.ApplicationRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeBackend) UpdateStatus(_ context.Context, id string, status models.Status) (*models.ApplicationRecord, error) {
	f.mu.Lock()
	f.writes = append(f.writes, status)
	gate := f.gate
	f.mu.Unlock()

	f.started <- status
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[status]; err != nil {
		return nil, err
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Status = status
			r := f.records[i]
			return &r, nil
		}
	}
	return nil, errors.NewApplicationNotFoundError(id)
}

func (f *fakeBackend) persisted(id string) models.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return r.Status
		}
	}
	return ""
}

func (f *fakeBackend) Writes() []models.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Status, len(f.writes))
	copy(out, f.writes)
	return out
}

type harness struct {
	r       *Reconciler
	queue   *mutation.Queue
	backend *fakeBackend
	toasts  *notify.Toasts
}

func newHarness(t *testing.T, backend *fakeBackend, timeout time.Duration, opts Options) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)
	q := mutation.New(backend, timeout, log)
	toasts := notify.NewToasts()
	opts.UserID = "user_2abc"
	r := NewReconciler(backend, q, toasts, nil, log, opts)
	require.NoError(t, r.Load(context.Background()))
	t.Cleanup(func() {
		r.Wait()
		q.Wait()
	})
	return &harness{r: r, queue: q, backend: backend, toasts: toasts}
}

func settle(t *testing.T, m *Move) Settlement {
	t.Helper()
	select {
	case s := <-m.Done():
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("move never settled")
		return Settlement{}
	}
}

// To_Apply: [J1, J2], Applied: [] and J1 dragged onto Applied.
func scenarioBackend() *fakeBackend {
	return newFakeBackend(rec("J1", models.StatusToApply), rec("J2", models.StatusToApply))
}

func TestReconciler_MoveIsOptimisticAndConfirmed(t *testing.T) {
	h := newHarness(t, scenarioBackend(), time.Second, Options{})
	before := h.r.Snapshot()

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J1", Source: models.StatusToApply, Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)
	require.Equal(t, OpMove, m.Transition.Op)

	// Applied locally before the backend answers.
	board := h.r.Snapshot()
	assert.Equal(t, []string{"J2"}, board.Order(models.StatusToApply))
	assert.Equal(t, []string{"J1"}, board.Order(models.StatusApplied))
	j1, _ := board.Record("J1")
	assert.Equal(t, models.StatusApplied, j1.Status)
	assert.NoError(t, board.CheckCoverage(before.IDs()))

	s := settle(t, m)
	require.NoError(t, s.Err)
	assert.False(t, s.RolledBack)
	assert.Equal(t, []models.Status{models.StatusApplied}, h.backend.Writes())
	assert.Equal(t, models.StatusApplied, h.backend.persisted("J1"))
	assert.Empty(t, h.r.Pending())

	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.KindSuccess, toasts[0].Kind)
	assert.Equal(t, "Application status updated successfully!", toasts[0].Message)

	// A refetch reproduces the same grouping.
	require.NoError(t, h.r.Reload(context.Background()))
	assert.True(t, h.r.Snapshot().Equal(board))
}

func TestReconciler_FailedMoveRollsBack(t *testing.T) {
	backend := scenarioBackend()
	backend.fail[models.StatusApplied] = errors.NewDatabaseConnectionFailedError(assert.AnError)
	h := newHarness(t, backend, time.Second, Options{})
	before := h.r.Snapshot()

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J1", Source: models.StatusToApply, Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)

	s := settle(t, m)
	require.Error(t, s.Err)
	assert.True(t, s.RolledBack)
	assert.Equal(t, errors.ErrCodePersistence, errors.CodeOf(s.Err))

	after := h.r.Snapshot()
	assert.True(t, after.Equal(before), "board after rollback must equal board before the move")
	assert.Equal(t, []string{"J1", "J2"}, after.Order(models.StatusToApply))
	assert.Empty(t, after[models.StatusApplied])
	assert.Empty(t, h.r.Pending())

	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.KindError, toasts[0].Kind)
	assert.Equal(t, errors.UserMessage(errors.ErrCodePersistence), toasts[0].Message)
}

func TestReconciler_ReorderIsLocalOnly(t *testing.T) {
	backend := newFakeBackend(rec("J1", models.StatusToApply), rec("J2", models.StatusToApply), rec("J3", models.StatusToApply))
	h := newHarness(t, backend, time.Second, Options{})

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J3", Source: models.StatusToApply, Target: RecordTarget("J1", models.StatusToApply)})
	require.NoError(t, err)
	assert.Equal(t, OpReorder, m.Transition.Op)

	s := settle(t, m)
	assert.NoError(t, s.Err)
	assert.Equal(t, []string{"J3", "J1", "J2"}, h.r.Snapshot().Order(models.StatusToApply))
	assert.Empty(t, h.backend.Writes())
	assert.Empty(t, h.toasts.All())
}

func TestReconciler_SuccessiveMovesPersistLastTarget(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	h := newHarness(t, backend, time.Second, Options{})
	ctx := context.Background()

	mb, err := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, <-backend.started)

	mc, err := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusInterviewing)})
	require.NoError(t, err)

	pending := h.r.Pending()["J1"]
	assert.Equal(t, models.StatusToApply, pending.Previous)
	assert.Equal(t, models.StatusInterviewing, pending.Target)

	backend.gate <- struct{}{}
	sb := settle(t, mb)
	require.NoError(t, sb.Err)

	// B is confirmed but C is still the desired state.
	assert.Equal(t, models.StatusApplied, h.r.Pending()["J1"].Previous)
	assert.Equal(t, []string{"J1"}, h.r.Snapshot().Order(models.StatusInterviewing))

	assert.Equal(t, models.StatusInterviewing, <-backend.started)
	backend.gate <- struct{}{}
	sc := settle(t, mc)
	require.NoError(t, sc.Err)

	assert.Equal(t, models.StatusInterviewing, backend.persisted("J1"))
	assert.Equal(t, []string{"J1"}, h.r.Snapshot().Order(models.StatusInterviewing))
	assert.Empty(t, h.r.Pending())
	assert.Len(t, h.toasts.All(), 1, "only the final move is announced")
}

func TestReconciler_IntermediateMoveIsSuperseded(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	h := newHarness(t, backend, time.Second, Options{})
	ctx := context.Background()

	mb, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	<-backend.started
	mc, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusInterviewing)})
	md, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusOffered)})

	assert.True(t, settle(t, mc).Superseded)

	backend.gate <- struct{}{}
	settle(t, mb)
	<-backend.started
	backend.gate <- struct{}{}
	require.NoError(t, settle(t, md).Err)

	assert.Equal(t, []models.Status{models.StatusApplied, models.StatusOffered}, backend.Writes())
	assert.Equal(t, models.StatusOffered, backend.persisted("J1"))
}

func TestReconciler_LatestFailureRollsBackToLastConfirmed(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	backend.fail[models.StatusOffered] = errors.NewQueryExecutionFailedError("update", assert.AnError)
	h := newHarness(t, backend, time.Second, Options{})
	ctx := context.Background()

	mb, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	<-backend.started
	mc, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusOffered)})

	backend.gate <- struct{}{}
	require.NoError(t, settle(t, mb).Err)
	<-backend.started
	backend.gate <- struct{}{}
	sc := settle(t, mc)
	require.Error(t, sc.Err)
	assert.True(t, sc.RolledBack)

	board := h.r.Snapshot()
	assert.Equal(t, []string{"J1"}, board.Order(models.StatusApplied))
	assert.Empty(t, board[models.StatusOffered])
	assert.Equal(t, models.StatusApplied, backend.persisted("J1"))
}

func TestReconciler_TimeoutRollsBack(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	h := newHarness(t, backend, 20*time.Millisecond, Options{})
	t.Cleanup(func() { close(backend.gate) })
	before := h.r.Snapshot()

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)

	s := settle(t, m)
	require.Error(t, s.Err)
	assert.Equal(t, errors.ErrCodeMutationTimeout, errors.CodeOf(s.Err))
	assert.True(t, s.RolledBack)
	assert.True(t, h.r.Snapshot().Equal(before))

	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, errors.ErrCodeMutationTimeout, toasts[0].Code)
}

func TestReconciler_QueuedMoveBehindHungWriteRollsBack(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	h := newHarness(t, backend, 50*time.Millisecond, Options{})
	t.Cleanup(func() { close(backend.gate) })
	ctx := context.Background()
	before := h.r.Snapshot()

	mb, err := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, <-backend.started)
	mc, err := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusInterviewing)})
	require.NoError(t, err)

	sb := settle(t, mb)
	assert.Equal(t, errors.ErrCodeMutationTimeout, errors.CodeOf(sb.Err))
	assert.False(t, sb.RolledBack, "a newer move owns the card")

	sc := settle(t, mc)
	assert.Equal(t, errors.ErrCodeMutationTimeout, errors.CodeOf(sc.Err))
	assert.True(t, sc.RolledBack)

	assert.True(t, h.r.WaitTimeout(time.Second))
	assert.True(t, h.r.Snapshot().Equal(before))
	assert.Empty(t, h.r.Pending())
	assert.Equal(t, []models.Status{models.StatusApplied}, backend.Writes())

	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, errors.ErrCodeMutationTimeout, toasts[0].Code)
}

func TestReconciler_OlderFailureWithWaitingMoveConfirms(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	backend.fail[models.StatusApplied] = errors.NewDatabaseConnectionFailedError(assert.AnError)
	h := newHarness(t, backend, time.Second, Options{})
	ctx := context.Background()

	mb, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	<-backend.started
	mc, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusInterviewing)})

	backend.gate <- struct{}{}
	sb := settle(t, mb)
	require.Error(t, sb.Err)
	assert.False(t, sb.RolledBack)
	assert.Equal(t, []string{"J1"}, h.r.Snapshot().Order(models.StatusInterviewing))

	assert.Equal(t, models.StatusInterviewing, <-backend.started)
	backend.gate <- struct{}{}
	require.NoError(t, settle(t, mc).Err)

	board := h.r.Snapshot()
	assert.Equal(t, []string{"J1"}, board.Order(models.StatusInterviewing))
	assert.Equal(t, []string{"J2"}, board.Order(models.StatusToApply))
	assert.Empty(t, h.r.Pending())
	assert.Equal(t, models.StatusInterviewing, backend.persisted("J1"))

	toasts := h.toasts.All()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.KindSuccess, toasts[0].Kind)
}

func TestReconciler_LateWriteIsAdoptedAfterRollback(t *testing.T) {
	backend := scenarioBackend()
	backend.gate = make(chan struct{})
	h := newHarness(t, backend, 20*time.Millisecond, Options{Debug: true})
	t.Cleanup(func() { close(backend.gate) })
	before := h.r.Snapshot()

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)
	<-backend.started

	s := settle(t, m)
	assert.True(t, s.RolledBack)
	assert.True(t, h.r.Snapshot().Equal(before))

	// The backend answers after all; the board follows it.
	backend.gate <- struct{}{}
	h.queue.Wait()

	board := h.r.Snapshot()
	assert.Equal(t, []string{"J2"}, board.Order(models.StatusToApply))
	assert.Equal(t, []string{"J1"}, board.Order(models.StatusApplied))
	assert.NoError(t, board.CheckCoverage(before.IDs()))
	assert.Equal(t, models.StatusApplied, backend.persisted("J1"))
}

func TestReconciler_StaleDropIsSilentNoop(t *testing.T) {
	h := newHarness(t, scenarioBackend(), time.Second, Options{Debug: true})
	before := h.r.Snapshot()

	m, err := h.r.Drop(context.Background(), DragResult{ID: "deleted", Source: models.StatusToApply, Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)
	assert.Equal(t, OpNone, settle(t, m).Transition.Op)
	assert.True(t, h.r.Snapshot().Equal(before))
	assert.Empty(t, h.backend.Writes())
}

func TestReconciler_InvalidTargetIsLoggedInProduction(t *testing.T) {
	h := newHarness(t, scenarioBackend(), time.Second, Options{})
	before := h.r.Snapshot()

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J1", Target: GroupTarget("Ghosted")})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, errors.ErrStatusInvalid)
	assert.True(t, h.r.Snapshot().Equal(before))
	assert.Empty(t, h.backend.Writes())
}

func TestReconciler_InvalidTargetPanicsInDebug(t *testing.T) {
	h := newHarness(t, scenarioBackend(), time.Second, Options{Debug: true})

	assert.Panics(t, func() {
		_, _ = h.r.Drop(context.Background(), DragResult{ID: "J1", Target: GroupTarget("Ghosted")})
	})
	// The lock was released on the way out.
	assert.Equal(t, 2, h.r.Snapshot().Len())
}

func TestReconciler_RefreshKeepsPendingMovesAndDropsDeleted(t *testing.T) {
	backend := newFakeBackend(rec("J1", models.StatusToApply), rec("J2", models.StatusToApply), rec("J3", models.StatusApplied))
	backend.gate = make(chan struct{})
	h := newHarness(t, backend, time.Second, Options{})
	ctx := context.Background()

	m1, _ := h.r.Drop(ctx, DragResult{ID: "J1", Target: GroupTarget(models.StatusOffered)})
	<-backend.started
	m2, _ := h.r.Drop(ctx, DragResult{ID: "J2", Target: GroupTarget(models.StatusRejected)})
	<-backend.started

	// Server still shows the old statuses and J2 has been deleted elsewhere.
	h.r.Refresh([]models.ApplicationRecord{
		rec("J1", models.StatusToApply),
		rec("J3", models.StatusApplied),
	})

	board := h.r.Snapshot()
	assert.Equal(t, []string{"J1"}, board.Order(models.StatusOffered))
	assert.Empty(t, board[models.StatusToApply])
	_, _, ok := board.Locate("J2")
	assert.False(t, ok)
	assert.NotContains(t, h.r.Pending(), "J2")

	backend.fail[models.StatusRejected] = errors.NewApplicationNotFoundError("J2")
	backend.gate <- struct{}{}
	backend.gate <- struct{}{}

	s2 := settle(t, m2)
	assert.False(t, s2.RolledBack, "removed records are not resurrected")
	require.NoError(t, settle(t, m1).Err)

	board = h.r.Snapshot()
	_, _, ok = board.Locate("J2")
	assert.False(t, ok)
	assert.Equal(t, []string{"J1"}, board.Order(models.StatusOffered))
}

func TestReconciler_RefreshOnConfirmReloads(t *testing.T) {
	backend := scenarioBackend()
	h := newHarness(t, backend, time.Second, Options{RefreshOnConfirm: true})

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J2", Target: GroupTarget(models.StatusAccepted)})
	require.NoError(t, err)
	require.NoError(t, settle(t, m).Err)

	backend.mu.Lock()
	calls := backend.listCalls
	backend.mu.Unlock()
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"J2"}, h.r.Snapshot().Order(models.StatusAccepted))
}

func TestReconciler_FinishWithController(t *testing.T) {
	h := newHarness(t, scenarioBackend(), time.Second, Options{})
	c := NewDragController(logger.NewTestLogger(t))

	// Released outside every drop zone.
	_, err := c.Start("J1", models.StatusToApply)
	require.NoError(t, err)
	m, err := h.r.Finish(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OpNone, m.Transition.Op)

	s, err := c.Start("J1", models.StatusToApply)
	require.NoError(t, err)
	s.UpdateTarget(ParseTarget("Applied", ""))
	m, err = h.r.Finish(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OpMove, m.Transition.Op)
	require.NoError(t, settle(t, m).Err)
	assert.Nil(t, c.Active())
}

func TestReconciler_ListenersSeeEveryState(t *testing.T) {
	h := newHarness(t, scenarioBackend(), time.Second, Options{})

	var mu sync.Mutex
	var seen []GroupedBoard
	h.r.OnChange(func(b GroupedBoard) {
		mu.Lock()
		seen = append(seen, b)
		mu.Unlock()
	})

	m, err := h.r.Drop(context.Background(), DragResult{ID: "J1", Target: GroupTarget(models.StatusApplied)})
	require.NoError(t, err)
	settle(t, m)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, []string{"J1"}, seen[0].Order(models.StatusApplied))
	for _, b := range seen {
		assert.NoError(t, b.CheckCoverage([]string{"J1", "J2"}))
	}
}
