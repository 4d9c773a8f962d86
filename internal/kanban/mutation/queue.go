// Package mutation serializes durable status writes per application.
package mutation

import (
	"context"
	"sync"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/common/metrics"
	"application-board/internal/models"
)

// Writer persists one status change. store.Repository and the Zeebe gateway satisfy it.
type Writer interface {
	UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error)
}

// Request is one enqueued write. Generation increases with every Enqueue on a queue.
type Request struct {
	ID         string
	Previous   models.Status
	Target     models.Status
	Generation uint64
}

// Result settles a Request.
type Result struct {
	Request Request
	Record  *models.ApplicationRecord
	// Err is a PERSISTENCE_FAILED or MUTATION_TIMEOUT StandardError.
	Err error
	// Superseded means a newer request for the same id replaced this one before it was sent.
	Superseded bool
	Duration   time.Duration
}

// LateWriteFunc is told about a write that succeeded after its request had already
// settled as MUTATION_TIMEOUT.
type LateWriteFunc func(req Request, rec *models.ApplicationRecord)

// Ticket is returned by Enqueue. Done receives exactly one Result.
type Ticket struct {
	Request Request
	Done    <-chan Result
}

type slot struct {
	ctx      context.Context
	req      Request
	done     chan Result
	enqueued time.Time
	// expiry settles the slot while it is still waiting behind another write.
	expiry *time.Timer
}

func (s *slot) deadline(timeout time.Duration) time.Time {
	return s.enqueued.Add(timeout)
}

func (s *slot) stopExpiry() {
	if s.expiry != nil {
		s.expiry.Stop()
	}
}

// lane holds the write in flight for one id and at most one waiting successor.
type lane struct {
	inflight *slot
	next     *slot
}

// Queue keeps at most one write in flight per application id. Later requests for a busy id
// wait; a waiting request is replaced by a newer one, so the last desired status is what
// reaches the backend.
//
// Every request is bounded by timeout counted from Enqueue, including the time spent
// waiting behind another write. A write that outlives it settles as MUTATION_TIMEOUT right
// away, but its lane stays busy until the backend call returns so a late write can never
// overtake a newer one.
type Queue struct {
	writer  Writer
	timeout time.Duration
	logger  logger.Logger

	mu     sync.Mutex
	lanes  map[string]*lane
	gen    uint64
	closed bool
	late   LateWriteFunc
	wg     sync.WaitGroup
}

func New(writer Writer, timeout time.Duration, log logger.Logger) *Queue {
	return &Queue{
		writer:  writer,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "status-mutation-queue"}),
		lanes:   make(map[string]*lane),
	}
}

// OnLateWrite registers fn for writes that land after their timeout was reported.
func (q *Queue) OnLateWrite(fn LateWriteFunc) {
	q.mu.Lock()
	q.late = fn
	q.mu.Unlock()
}

// Enqueue schedules a write of target for id. ctx carries trace values only; its
// cancellation does not abort the write.
func (q *Queue) Enqueue(ctx context.Context, id string, previous, target models.Status) Ticket {
	done := make(chan Result, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.gen++
	s := &slot{
		ctx:      context.WithoutCancel(ctx),
		req:      Request{ID: id, Previous: previous, Target: target, Generation: q.gen},
		done:     done,
		enqueued: time.Now(),
	}

	if q.closed {
		done <- Result{Request: s.req, Err: errors.NewPersistenceError(id, errQueueClosed)}
		return Ticket{Request: s.req, Done: done}
	}

	l, busy := q.lanes[id]
	if !busy {
		l = &lane{inflight: s}
		q.lanes[id] = l
		q.wg.Add(1)
		go q.run(id, l)
		return Ticket{Request: s.req, Done: done}
	}

	if l.next != nil {
		metrics.StatusWritesSuperseded.Inc()
		q.logger.Debug("status write superseded", map[string]interface{}{
			"applicationId": id,
			"dropped":       string(l.next.req.Target),
			"target":        string(target),
		})
		l.next.stopExpiry()
		l.next.done <- Result{Request: l.next.req, Superseded: true, Duration: time.Since(l.next.enqueued)}
	}
	l.next = s
	if q.timeout > 0 {
		s.expiry = time.AfterFunc(q.timeout, func() { q.expire(id, l, s) })
	}
	return Ticket{Request: s.req, Done: done}
}

type outcome struct {
	rec *models.ApplicationRecord
	err error
}

func (q *Queue) run(id string, l *lane) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		s := l.inflight
		q.mu.Unlock()

		q.write(id, s)

		q.mu.Lock()
		if l.next == nil {
			delete(q.lanes, id)
			q.mu.Unlock()
			return
		}
		l.next.stopExpiry()
		l.inflight, l.next = l.next, nil
		q.mu.Unlock()
	}
}

// expire settles s as timed out if it is still waiting for its lane.
func (q *Queue) expire(id string, l *lane, s *slot) {
	q.mu.Lock()
	if l.next != s {
		q.mu.Unlock()
		return
	}
	l.next = nil
	q.mu.Unlock()

	q.logger.Warn("queued status write timed out", map[string]interface{}{
		"applicationId": id,
		"target":        string(s.req.Target),
		"timeoutMs":     q.timeout.Milliseconds(),
	})
	q.deliver(s, nil, context.DeadlineExceeded)
}

// write performs s and delivers its result, possibly before the backend call returns.
func (q *Queue) write(id string, s *slot) {
	metrics.StatusWritesInflight.Inc()
	defer metrics.StatusWritesInflight.Dec()

	ctx, cancel := s.ctx, context.CancelFunc(func() {})
	if q.timeout > 0 {
		deadline := s.deadline(q.timeout)
		if !time.Now().Before(deadline) {
			// Its time ran out as it was handed the lane; never send it.
			q.deliver(s, nil, context.DeadlineExceeded)
			return
		}
		ctx, cancel = context.WithDeadline(s.ctx, deadline)
	}
	defer cancel()

	returned := make(chan outcome, 1)
	go func() {
		rec, err := q.writer.UpdateStatus(ctx, id, s.req.Target)
		returned <- outcome{rec: rec, err: err}
	}()

	select {
	case o := <-returned:
		q.deliver(s, o.rec, o.err)
	case <-ctx.Done():
		q.logger.Warn("status write timed out", map[string]interface{}{
			"applicationId": id,
			"target":        string(s.req.Target),
			"timeoutMs":     q.timeout.Milliseconds(),
		})
		q.deliver(s, nil, ctx.Err())
		// Hold the lane until the backend answers.
		o := <-returned
		if o.err != nil {
			return
		}
		q.logger.Warn("status write landed after timeout", map[string]interface{}{
			"applicationId": id,
			"target":        string(s.req.Target),
		})
		q.mu.Lock()
		late := q.late
		q.mu.Unlock()
		if late != nil {
			late(s.req, o.rec)
		}
	}
}

func (q *Queue) deliver(s *slot, rec *models.ApplicationRecord, err error) {
	res := Result{Request: s.req, Record: rec, Duration: time.Since(s.enqueued)}
	if err != nil {
		res.Err = errors.NewPersistenceError(s.req.ID, err)
		q.logger.Warn("status write failed", map[string]interface{}{
			"applicationId": s.req.ID,
			"target":        string(s.req.Target),
			"errorCode":     string(errors.CodeOf(res.Err)),
			"error":         err,
		})
	}
	s.done <- res
}

// Inflight returns the number of ids with a write in flight.
func (q *Queue) Inflight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// Close stops accepting requests. Already queued writes still run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Wait blocks until every lane has drained.
func (q *Queue) Wait() {
	q.wg.Wait()
}

type queueError string

func (e queueError) Error() string { return string(e) }

const errQueueClosed = queueError("mutation queue closed")
