package kanban

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/common/metrics"
	"application-board/internal/common/observability"
	"application-board/internal/kanban/mutation"
	"application-board/internal/models"
	"application-board/internal/notify"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Source supplies the authoritative list for a user.
type Source interface {
	List(ctx context.Context, userID string) ([]models.ApplicationRecord, error)
}

type Options struct {
	UserID string
	// Debug turns internal consistency faults into panics and re-checks coverage after every change.
	Debug bool
	// RefreshOnConfirm reloads the list after each confirmed move.
	RefreshOnConfirm bool
}

// PendingMutation is a move still awaiting the backend.
type PendingMutation struct {
	ID string
	// Previous is the last status the backend confirmed; rollback returns here.
	Previous models.Status
	Target   models.Status
	// OriginIndex is where rollback reinserts the card; -1 means end of column.
	OriginIndex int
	Generation  uint64
}

// Settlement is the final outcome of a drop.
type Settlement struct {
	Transition Transition
	Record     *models.ApplicationRecord
	Err        error
	Superseded bool
	RolledBack bool
}

// Move is the handle returned by Drop.
type Move struct {
	Transition Transition
	done       chan Settlement
}

// Done yields one Settlement and then closes.
func (m *Move) Done() <-chan Settlement {
	return m.done
}

func settledMove(tr Transition) *Move {
	m := &Move{Transition: tr, done: make(chan Settlement, 1)}
	m.done <- Settlement{Transition: tr}
	close(m.done)
	return m
}

// Listener observes every new board state. Listeners run with the reconciler locked and
// must not call back into it.
type Listener func(GroupedBoard)

// Reconciler owns the live board. Drops apply immediately; moves are then persisted through
// the mutation queue and confirmed or rolled back when the backend answers.
type Reconciler struct {
	source   Source
	queue    *mutation.Queue
	notifier notify.Notifier
	obs      *observability.Observability
	logger   logger.Logger
	opts     Options

	mu        sync.Mutex
	board     GroupedBoard
	pending   map[string]*PendingMutation
	listeners []Listener
	settling  sync.WaitGroup
}

func NewReconciler(source Source, queue *mutation.Queue, notifier notify.Notifier, obs *observability.Observability, log logger.Logger, opts Options) *Reconciler {
	r := &Reconciler{
		source:   source,
		queue:    queue,
		notifier: notifier,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "board", "userId": opts.UserID}),
		opts:     opts,
		board:    emptyBoard(),
		pending:  make(map[string]*PendingMutation),
	}
	if queue != nil {
		queue.OnLateWrite(r.landed)
	}
	return r
}

// OnChange registers l for future board states.
func (r *Reconciler) OnChange(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Snapshot returns a copy of the live board.
func (r *Reconciler) Snapshot() GroupedBoard {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone()
}

// Pending returns the outstanding moves by application id.
func (r *Reconciler) Pending() map[string]PendingMutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]PendingMutation, len(r.pending))
	for id, p := range r.pending {
		out[id] = *p
	}
	return out
}

// Load fetches the list and replaces the board.
func (r *Reconciler) Load(ctx context.Context) error {
	return r.Reload(ctx)
}

// Reload refetches the list and resynchronizes through Refresh.
func (r *Reconciler) Reload(ctx context.Context) error {
	records, err := r.source.List(ctx, r.opts.UserID)
	if err != nil {
		r.logger.Error("failed to load applications", map[string]interface{}{"error": err})
		return err
	}
	r.Refresh(records)
	return nil
}

// Refresh re-partitions an authoritative list. Moves still awaiting the backend stay
// applied on top; records missing from the list are dropped along with their pending moves.
// Manual order inside a column is not kept: columns follow the list order.
func (r *Reconciler) Refresh(records []models.ApplicationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	board := Partition(records)
	for id, p := range r.pending {
		s, i, ok := board.Locate(id)
		if !ok {
			r.logger.Info("dropping pending move for removed application", map[string]interface{}{"applicationId": id})
			delete(r.pending, id)
			continue
		}
		if s != p.Target {
			rec := board.remove(s, i)
			rec.Status = p.Target
			board.insert(p.Target, -1, rec)
		}
	}

	r.board = board
	r.logger.Debug("board refreshed", map[string]interface{}{
		"records": board.Len(),
		"pending": len(r.pending),
	})
	if r.opts.Debug {
		r.mustCover(Partition(records).IDs())
	}
	r.emit()
}

// Finish ends the controller's gesture and applies it. A gesture released outside every
// drop zone yields a settled no-op.
func (r *Reconciler) Finish(ctx context.Context, c *DragController) (*Move, error) {
	drag, ok := c.End()
	if !ok {
		return settledMove(Transition{}), nil
	}
	return r.Drop(ctx, drag)
}

// Drop applies a finished drag. Reorders and no-ops settle at once. Moves settle when
// the backend answers; watch Move.Done or call Wait.
//
// A stale card or target is a silent no-op. A target naming an unknown column is an
// internal fault: it panics with Debug set, and is otherwise logged and returned with the
// board untouched.
func (r *Reconciler) Drop(ctx context.Context, drag DragResult) (*Move, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.board.IDs()
	next, tr, err := ApplyDrag(r.board, drag)
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.ErrCodeStaleReference:
			metrics.BoardDrops.WithLabelValues("stale").Inc()
			r.logger.Debug("drop on stale reference ignored", map[string]interface{}{"applicationId": drag.ID})
			return settledMove(tr), nil
		default:
			metrics.BoardDrops.WithLabelValues("invalid").Inc()
			if r.opts.Debug {
				panic(fmt.Sprintf("kanban: inconsistent drop target for %s: %v", drag.ID, err))
			}
			r.logger.Error("drop target is not a board column", map[string]interface{}{
				"applicationId": drag.ID,
				"target":        string(drag.Target.Status),
				"errorCode":     string(errors.CodeOf(err)),
			})
			return nil, err
		}
	}

	metrics.BoardDrops.WithLabelValues(tr.Op.String()).Inc()
	if tr.Op == OpNone {
		return settledMove(tr), nil
	}

	r.board = next
	if r.opts.Debug {
		r.mustCover(before)
	}

	if tr.Op == OpReorder {
		r.emit()
		return settledMove(tr), nil
	}

	p, exists := r.pending[tr.ID]
	if !exists {
		p = &PendingMutation{ID: tr.ID, Previous: tr.From, OriginIndex: tr.FromIndex}
		r.pending[tr.ID] = p
	}
	p.Target = tr.To

	spanCtx, span := r.obs.StartSpan(ctx, "board.move",
		attribute.String("application.id", tr.ID),
		attribute.String("status.from", string(tr.From)),
		attribute.String("status.to", string(tr.To)),
	)
	ticket := r.queue.Enqueue(spanCtx, tr.ID, p.Previous, tr.To)
	p.Generation = ticket.Request.Generation

	r.logger.Info("application moved", map[string]interface{}{
		"applicationId": tr.ID,
		"from":          string(tr.From),
		"to":            string(tr.To),
		"generation":    p.Generation,
	})
	r.emit()

	move := &Move{Transition: tr, done: make(chan Settlement, 1)}
	r.settling.Add(1)
	go func() {
		defer r.settling.Done()
		defer span.End()
		res := <-ticket.Done
		s := r.settle(context.WithoutCancel(spanCtx), tr, res)
		if s.Err != nil {
			span.RecordError(s.Err)
			span.SetStatus(codes.Error, string(errors.CodeOf(s.Err)))
		}
		move.done <- s
		close(move.done)
	}()
	return move, nil
}

func (r *Reconciler) settle(ctx context.Context, tr Transition, res mutation.Result) Settlement {
	out := Settlement{Transition: tr, Record: res.Record, Err: res.Err, Superseded: res.Superseded}

	var (
		toast  *notify.Notification
		reload bool
	)

	r.mu.Lock()
	p := r.pending[tr.ID]
	switch {
	case res.Superseded:
		r.obs.RecordStatusWrite(ctx, res.Duration, "superseded")

	case p == nil:
		// The record left the board on a refresh; nothing to confirm or undo.
		r.logger.Debug("settlement for removed application ignored", map[string]interface{}{"applicationId": tr.ID})

	case res.Err == nil && res.Request.Generation == p.Generation:
		delete(r.pending, tr.ID)
		r.adopt(res.Record)
		r.obs.RecordStatusWrite(ctx, res.Duration, "confirmed")
		n := notify.Success(tr.ID)
		toast = &n
		reload = r.opts.RefreshOnConfirm

	case res.Err == nil:
		// An older write landed; a newer one is still on its way.
		p.Previous = res.Request.Target
		p.OriginIndex = -1
		r.obs.RecordStatusWrite(ctx, res.Duration, "confirmed")

	case res.Request.Generation == p.Generation:
		r.rollback(p)
		delete(r.pending, tr.ID)
		out.RolledBack = true
		metrics.BoardRollbacks.WithLabelValues(string(errors.CodeOf(res.Err))).Inc()
		r.obs.RecordStatusWrite(ctx, res.Duration, "failed")
		n := notify.Failure(tr.ID, res.Err)
		toast = &n

	default:
		r.obs.RecordStatusWrite(ctx, res.Duration, "failed")
		r.logger.Warn("superseded status write failed", map[string]interface{}{
			"applicationId": tr.ID,
			"target":        string(res.Request.Target),
			"error":         res.Err,
		})
	}
	r.mu.Unlock()

	if toast != nil && r.notifier != nil {
		r.notifier.Notify(ctx, *toast)
	}
	if reload {
		if err := r.Reload(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
			r.logger.Warn("refresh after confirmation failed", map[string]interface{}{"error": err})
		}
	}
	return out
}

// landed resynchronizes a card after a write that was reported as timed out reached the
// backend anyway. A move still pending for the card keeps its target but now rolls back
// to the landed status.
func (r *Reconciler) landed(req mutation.Request, rec *models.ApplicationRecord) {
	status := req.Target
	if rec != nil {
		status = rec.Status
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p := r.pending[req.ID]; p != nil {
		p.Previous = status
		p.OriginIndex = -1
		return
	}

	s, i, ok := r.board.Locate(req.ID)
	if !ok || s == status {
		return
	}
	before := r.board.IDs()

	next := r.board.Clone()
	moved := next.remove(s, i)
	if rec != nil {
		moved = *rec
	}
	moved.Status = status
	next.insert(status, -1, moved)
	r.board = next

	r.logger.Warn("late status write adopted", map[string]interface{}{
		"applicationId": req.ID,
		"from":          string(s),
		"to":            string(status),
	})
	if r.opts.Debug {
		r.mustCover(before)
	}
	r.emit()
}

// adopt replaces the local copy with the backend's row when it agrees with the board.
func (r *Reconciler) adopt(rec *models.ApplicationRecord) {
	if rec == nil {
		return
	}
	s, i, ok := r.board.Locate(rec.ID)
	if !ok || s != rec.Status {
		return
	}
	next := r.board.Clone()
	next[s][i] = *rec
	r.board = next
	r.emit()
}

// rollback returns the card to the last confirmed status at its original position.
func (r *Reconciler) rollback(p *PendingMutation) {
	s, i, ok := r.board.Locate(p.ID)
	if !ok {
		return
	}
	before := r.board.IDs()

	next := r.board.Clone()
	rec := next.remove(s, i)
	rec.Status = p.Previous
	next.insert(p.Previous, p.OriginIndex, rec)
	r.board = next

	r.logger.Warn("move rolled back", map[string]interface{}{
		"applicationId": p.ID,
		"from":          string(s),
		"to":            string(p.Previous),
	})
	if r.opts.Debug {
		r.mustCover(before)
	}
	r.emit()
}

func (r *Reconciler) mustCover(ids []string) {
	if err := r.board.CheckCoverage(ids); err != nil {
		panic("kanban: coverage violated: " + err.Error())
	}
}

func (r *Reconciler) emit() {
	if len(r.listeners) == 0 {
		return
	}
	snap := r.board.Clone()
	for _, l := range r.listeners {
		l(snap)
	}
}

// Wait blocks until every outstanding move has settled.
func (r *Reconciler) Wait() {
	r.settling.Wait()
}

// WaitTimeout is Wait with an upper bound. It reports whether everything settled.
func (r *Reconciler) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
