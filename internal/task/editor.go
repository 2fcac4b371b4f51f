package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"zenflow/internal/debounce"
)

// DraftEditor holds a draft while its fields are being edited and keeps a
// debounced conflict evaluation for it. Every edit marks the evaluation
// stale and restarts the quiet period; once the edits go quiet the conflicts
// are recomputed against a fresh store snapshot and become visible.
//
// The editor only gates submission. Store.Create and Store.Overwrite still
// run their own conflict check atomically at commit time.
type DraftEditor struct {
	store *Store
	deb   *debounce.Debouncer

	mu        sync.Mutex
	draft     Draft
	gen       uint64
	stale     bool
	conflicts []Task
	onEval    func(conflicts []Task)
}

func NewDraftEditor(store *Store, quiet time.Duration) *DraftEditor {
	e := &DraftEditor{store: store}
	e.deb = debounce.New(quiet, e.evaluate)
	return e
}

// OnEvaluate registers a callback invoked after each completed evaluation.
func (e *DraftEditor) OnEvaluate(fn func(conflicts []Task)) {
	e.mu.Lock()
	e.onEval = fn
	e.mu.Unlock()
}

// Edit applies fn to the draft and restarts the quiet period.
func (e *DraftEditor) Edit(fn func(d *Draft)) {
	e.mu.Lock()
	if fn != nil {
		fn(&e.draft)
	}
	e.gen++
	e.stale = true
	e.mu.Unlock()
	e.deb.Trigger()
}

// SetFields replaces the draft with the one described by form fields.
func (e *DraftEditor) SetFields(f Fields) {
	d := f.Draft(e.store.Location())
	e.Edit(func(cur *Draft) { *cur = d })
}

// Refresh schedules a re-evaluation without changing the draft, e.g. after
// the store changed underneath it.
func (e *DraftEditor) Refresh() { e.Edit(nil) }

func (e *DraftEditor) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Pending reports whether the visible conflicts are out of date.
func (e *DraftEditor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stale
}

// Conflicts returns the conflicts from the last completed evaluation.
func (e *DraftEditor) Conflicts() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneTasks(e.conflicts)
}

// Flush evaluates immediately if the visible conflicts are out of date.
func (e *DraftEditor) Flush() {
	if e.deb.Flush() {
		return
	}
	// The timer may have fired and still be evaluating.
	if e.Pending() {
		e.evaluate()
	}
}

func (e *DraftEditor) evaluate() {
	e.mu.Lock()
	d := e.draft
	gen := e.gen
	e.mu.Unlock()

	var c []Task
	if iv, ok := d.Interval(); ok {
		c = ComputeConflicts(iv, e.store.Snapshot())
	}

	e.mu.Lock()
	if gen != e.gen {
		// Edited while evaluating; the debouncer is already re-armed.
		e.mu.Unlock()
		return
	}
	e.conflicts = c
	e.stale = false
	cb := e.onEval
	e.mu.Unlock()
	if cb != nil {
		cb(cloneTasks(c))
	}
}

// Submit commits the draft. It refuses while a scheduled draft's conflicts
// are still being evaluated, and returns the visible conflicts as a
// *ConflictError instead of committing. On success the editor is reset.
func (e *DraftEditor) Submit(ctx context.Context) (Task, error) {
	d, err := e.ready()
	if err != nil {
		return Task{}, err
	}
	e.mu.Lock()
	if len(e.conflicts) > 0 {
		err := &ConflictError{Conflicts: cloneTasks(e.conflicts)}
		e.mu.Unlock()
		return Task{}, err
	}
	e.mu.Unlock()

	t, err := e.store.Create(ctx, d)
	if err != nil {
		e.noteConflict(err)
		return Task{}, err
	}
	e.Reset()
	return t, nil
}

// Overwrite replaces the visible conflicts with the draft in one step.
func (e *DraftEditor) Overwrite(ctx context.Context) (Task, error) {
	d, err := e.ready()
	if err != nil {
		return Task{}, err
	}
	e.mu.Lock()
	ids := (&ConflictError{Conflicts: e.conflicts}).IDs()
	e.mu.Unlock()

	t, err := e.store.Overwrite(ctx, ids, d)
	if err != nil {
		e.noteConflict(err)
		return Task{}, err
	}
	e.Reset()
	return t, nil
}

func (e *DraftEditor) ready() (Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, scheduled := e.draft.Interval(); scheduled && e.stale {
		return Draft{}, ErrDraftPending
	}
	return e.draft, nil
}

// noteConflict surfaces a commit-time conflict (the store changed after the
// last evaluation) as the visible conflict set.
func (e *DraftEditor) noteConflict(err error) {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return
	}
	e.mu.Lock()
	e.conflicts = cloneTasks(ce.Conflicts)
	e.stale = false
	e.mu.Unlock()
}

// Reset clears the draft and any pending evaluation.
func (e *DraftEditor) Reset() {
	e.deb.Cancel()
	e.mu.Lock()
	e.draft = Draft{}
	e.gen++
	e.stale = false
	e.conflicts = nil
	e.mu.Unlock()
}

// Close cancels any pending evaluation.
func (e *DraftEditor) Close() { e.deb.Cancel() }

func cloneTasks(in []Task) []Task {
	if len(in) == 0 {
		return nil
	}
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = t.clone()
	}
	return out
}
