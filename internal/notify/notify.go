// Package notify delivers the board's user-visible notifications (toasts).
package notify

import (
	"context"
	"sync"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// StatusUpdated is the confirmation text shown after a successful move.
const StatusUpdated = "Application status updated successfully!"

type Notification struct {
	ID            string           `json:"id"`
	Kind          Kind             `json:"kind"`
	Code          errors.ErrorCode `json:"code,omitempty"`
	Message       string           `json:"message"`
	ApplicationID string           `json:"applicationId,omitempty"`
	At            time.Time        `json:"at"`
}

// Notifier receives notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success builds a confirmation notification for applicationID.
func Success(applicationID string) Notification {
	return Notification{
		ID:            uuid.NewString(),
		Kind:          KindSuccess,
		Message:       StatusUpdated,
		ApplicationID: applicationID,
		At:            time.Now().UTC(),
	}
}

// Failure builds an error notification. The text comes from the code, never from err's detail.
func Failure(applicationID string, err error) Notification {
	code := errors.CodeOf(err)
	return Notification{
		ID:            uuid.NewString(),
		Kind:          KindError,
		Code:          code,
		Message:       errors.UserMessage(code),
		ApplicationID: applicationID,
		At:            time.Now().UTC(),
	}
}

// Toasts keeps notifications in memory for a UI (or a test) to drain.
type Toasts struct {
	mu    sync.Mutex
	items []Notification
}

func NewToasts() *Toasts {
	return &Toasts{}
}

func (t *Toasts) Notify(_ context.Context, n Notification) {
	t.mu.Lock()
	t.items = append(t.items, n)
	t.mu.Unlock()
}

// All returns a copy of every notification received so far.
func (t *Toasts) All() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Notification, len(t.items))
	copy(out, t.items)
	return out
}

// Drain returns and clears pending notifications.
func (t *Toasts) Drain() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.items
	t.items = nil
	return out
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}

// Logging writes each notification to the log.
type Logging struct {
	Logger logger.Logger
}

func (l Logging) Notify(_ context.Context, n Notification) {
	fields := map[string]interface{}{
		"kind":          string(n.Kind),
		"applicationId": n.ApplicationID,
		"message":       n.Message,
	}
	if n.Kind == KindError {
		fields["errorCode"] = string(n.Code)
		l.Logger.Warn("board notification", fields)
		return
	}
	l.Logger.Info("board notification", fields)
}
