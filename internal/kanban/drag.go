package kanban

import (
	"sync"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/models"
)

type TargetKind int

const (
	// TargetNone means the pointer is outside every drop zone.
	TargetNone TargetKind = iota
	TargetGroup
	TargetRecord
)

func (k TargetKind) String() string {
	switch k {
	case TargetGroup:
		return "group"
	case TargetRecord:
		return "record"
	default:
		return "none"
	}
}

// Target is what the pointer is over: a column, or a card inside a column.
type Target struct {
	Kind TargetKind
	// Status is the column for a group target, and the column the card was rendered
	// in for a record target. The latter is only a hint used when the card has gone.
	Status   models.Status
	RecordID string
}

func GroupTarget(s models.Status) Target {
	return Target{Kind: TargetGroup, Status: s}
}

func RecordTarget(id string, container models.Status) Target {
	return Target{Kind: TargetRecord, RecordID: id, Status: container}
}

// ParseTarget reads a drop-zone id the way the UI reports it: a status name is a column,
// any other non-empty id is a card, with container naming the column it was rendered in.
func ParseTarget(raw, container string) Target {
	if raw == "" {
		return Target{}
	}
	if s := models.Status(raw); s.Valid() {
		return GroupTarget(s)
	}
	return RecordTarget(raw, models.Status(container))
}

func (t Target) Defined() bool {
	return t.Kind != TargetNone
}

// DragResult is a finished gesture ready to apply.
type DragResult struct {
	ID     string
	Source models.Status
	Target Target
}

// DragSession is the state of one live gesture. It is only valid while its controller
// still holds it.
type DragSession struct {
	id      string
	source  models.Status
	target  Target
	started time.Time
	owner   *DragController
}

func (s *DragSession) ID() string            { return s.id }
func (s *DragSession) Source() models.Status { return s.source }

// Target returns the last hover target reported.
func (s *DragSession) Target() Target {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.target
}

// UpdateTarget records the hover target. Advisory only; ignored once the session has ended.
func (s *DragSession) UpdateTarget(t Target) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.owner.active != s {
		return
	}
	s.target = t
}

// DragController owns the single drag gesture a pointer can perform at a time.
type DragController struct {
	mu     sync.Mutex
	active *DragSession
	logger logger.Logger
}

func NewDragController(log logger.Logger) *DragController {
	return &DragController{logger: log.WithFields(map[string]interface{}{"component": "drag"})}
}

// Start opens a session. It fails with DRAG_IN_PROGRESS, leaving the live session as is,
// when one is already open.
func (c *DragController) Start(id string, source models.Status) (*DragSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		err := errors.NewDragInProgressError(c.active.id)
		c.logger.Warn("drag start ignored", map[string]interface{}{
			"applicationId": id,
			"activeId":      c.active.id,
			"errorCode":     string(err.Code),
		})
		return nil, err
	}

	c.active = &DragSession{id: id, source: source, started: time.Now(), owner: c}
	c.logger.Debug("drag started", map[string]interface{}{
		"applicationId": id,
		"source":        string(source),
	})
	return c.active, nil
}

// Active returns the live session, or nil.
func (c *DragController) Active() *DragSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// End closes the session and returns the drop. ok is false when nothing was being dragged
// or the pointer was released outside every drop zone.
func (c *DragController) End() (DragResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return DragResult{}, false
	}
	c.active = nil

	if !s.target.Defined() {
		c.logger.Debug("drag released outside drop zones", map[string]interface{}{"applicationId": s.id})
		return DragResult{}, false
	}
	c.logger.Debug("drag ended", map[string]interface{}{
		"applicationId": s.id,
		"target":        s.target.Kind.String(),
		"durationMs":    time.Since(s.started).Milliseconds(),
	})
	return DragResult{ID: s.id, Source: s.source, Target: s.target}, true
}

// Cancel discards the session with no other effect.
func (c *DragController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
}
