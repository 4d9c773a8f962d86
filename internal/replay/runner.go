package replay

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"application-board/internal/common/errors"
	"application-board/internal/common/logger"
	"application-board/internal/kanban"
	"application-board/internal/notify"
)

// Faults is implemented by backends that can simulate server-side changes.
type Faults interface {
	FailNext(id string, n int)
	Delete(id string)
}

type Runner struct {
	board  *kanban.Reconciler
	drags  *kanban.DragController
	faults Faults
	toasts *notify.Toasts
	out    io.Writer
	logger logger.Logger
}

// NewRunner builds a runner. faults may be nil when the backend is a live one.
func NewRunner(board *kanban.Reconciler, faults Faults, toasts *notify.Toasts, out io.Writer, log logger.Logger) *Runner {
	return &Runner{
		board:  board,
		drags:  kanban.NewDragController(log),
		faults: faults,
		toasts: toasts,
		out:    out,
		logger: log.WithFields(map[string]interface{}{"component": "replay"}),
	}
}

// Run plays every step, waits for outstanding writes, and prints the final board.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	for i, st := range s.Steps {
		if err := r.step(ctx, i, st); err != nil {
			return err
		}
	}
	r.board.Wait()

	fmt.Fprintln(r.out, "final board:")
	PrintBoard(r.out, r.board.Snapshot())
	r.printToasts()
	return nil
}

func (r *Runner) step(ctx context.Context, i int, st Step) error {
	if st.Fail > 0 || st.Delete != "" {
		if r.faults == nil {
			r.logger.Warn("backend does not support fault injection, skipping", map[string]interface{}{"step": i})
		} else {
			if st.Fail > 0 {
				r.faults.FailNext(st.Drag, st.Fail)
			}
			if st.Delete != "" {
				r.faults.Delete(st.Delete)
			}
		}
	}
	if st.Reload {
		if err := r.board.Reload(ctx); err != nil {
			return fmt.Errorf("step %d: reload: %w", i, err)
		}
	}

	if st.Drag != "" {
		r.drag(ctx, i, st)
	}

	if st.Pause != "" {
		d, _ := time.ParseDuration(st.Pause)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) drag(ctx context.Context, i int, st Step) {
	source, _, ok := r.board.Snapshot().Locate(st.Drag)
	if !ok {
		fmt.Fprintf(r.out, "step %d: %s is not on the board\n", i, st.Drag)
	}

	session, err := r.drags.Start(st.Drag, source)
	if err != nil {
		fmt.Fprintf(r.out, "step %d: %s\n", i, errors.CodeOf(err))
		return
	}
	session.UpdateTarget(kanban.ParseTarget(st.Over, st.Container))

	move, err := r.board.Finish(ctx, r.drags)
	if err != nil {
		fmt.Fprintf(r.out, "step %d: drop rejected: %s\n", i, errors.CodeOf(err))
		return
	}

	tr := move.Transition
	switch tr.Op {
	case kanban.OpMove:
		fmt.Fprintf(r.out, "step %d: moved %s %s -> %s\n", i, tr.ID, tr.From, tr.To)
	case kanban.OpReorder:
		fmt.Fprintf(r.out, "step %d: reordered %s in %s to %d\n", i, tr.ID, tr.To, tr.ToIndex)
	default:
		fmt.Fprintf(r.out, "step %d: no change\n", i)
	}

	if !st.Wait {
		return
	}
	select {
	case s := <-move.Done():
		switch {
		case s.Superseded:
			fmt.Fprintf(r.out, "step %d: superseded\n", i)
		case s.Err != nil:
			fmt.Fprintf(r.out, "step %d: failed: %s\n", i, errors.CodeOf(s.Err))
		default:
			fmt.Fprintf(r.out, "step %d: confirmed\n", i)
		}
	case <-ctx.Done():
	}
}

func (r *Runner) printToasts() {
	toasts := r.toasts.All()
	if len(toasts) == 0 {
		return
	}
	fmt.Fprintln(r.out, "notifications:")
	for _, n := range toasts {
		fmt.Fprintf(r.out, "  [%s] %s\n", n.Kind, n.Message)
	}
}

// PrintBoard writes one line per column: status, count, then "company - title" cards.
func PrintBoard(w io.Writer, b kanban.GroupedBoard) {
	for _, col := range b.Columns() {
		cards := make([]string, 0, len(col.Records))
		for _, rec := range col.Records {
			cards = append(cards, fmt.Sprintf("%s - %s", rec.CompanyName, rec.JobTitle))
		}
		fmt.Fprintf(w, "  %-12s (%d) %s\n", col.Status, len(col.Records), strings.Join(cards, ", "))
	}
}
