package task

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenflow/internal/eventbus"
	"zenflow/internal/storage"
	logx "zenflow/pkg/logx"
)

// DefaultKey is the persistence key holding the ordered task sequence.
const DefaultKey = "zenflow_tasks_v2"

// Store owns the ordered task collection (newest first).
//
// It is safe for concurrent use; all mutations are serialized.
type Store struct {
	mu    sync.Mutex
	tasks []Task

	log     logx.Logger
	persist storage.Store
	key     string
	bus     eventbus.Publisher

	loc   *time.Location
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithLocation sets the location used to derive HH:MM labels.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides task id assignment.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithKey(key string) Option {
	return func(s *Store) {
		if k := strings.TrimSpace(key); k != "" {
			s.key = k
		}
	}
}

func WithBus(bus eventbus.Publisher) Option {
	return func(s *Store) { s.bus = bus }
}

// NewStore loads the persisted task sequence from persist (once) and returns
// the store. Missing, unreadable or malformed data yields an empty list.
// persist may be nil for a purely in-memory store.
func NewStore(ctx context.Context, persist storage.Store, log logx.Logger, opts ...Option) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{
		log:     log,
		persist: persist,
		key:     DefaultKey,
		loc:     time.Local,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if s.persist == nil {
		return
	}
	b, ok, err := s.persist.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("task load failed; starting empty", logx.String("key", s.key), logx.Err(err))
		return
	}
	if !ok || len(b) == 0 {
		return
	}
	tasks, skipped, err := decodeTasks(b, s.loc)
	if err != nil {
		s.log.Warn("stored tasks corrupt; starting empty", logx.String("key", s.key), logx.Err(err))
		return
	}
	if skipped > 0 {
		s.log.Warn("skipped invalid stored tasks", logx.Int("skipped", skipped))
	}
	s.tasks = tasks
	s.log.Debug("tasks loaded", logx.Int("count", len(tasks)))
}

// saveLocked writes the full sequence. Call with s.mu held so the persisted
// order always matches commit order. Failures are logged, not returned: the
// in-memory commit stands.
func (s *Store) saveLocked(ctx context.Context) {
	if s.persist == nil {
		return
	}
	b, err := encodeTasks(s.tasks)
	if err != nil {
		s.log.Error("task encode failed", logx.Err(err))
		return
	}
	if err := s.persist.Set(ctx, s.key, b); err != nil {
		s.log.Warn("task persist failed", logx.String("key", s.key), logx.Err(err))
	}
}

// Location returns the location used for labels.
func (s *Store) Location() *time.Location { return s.loc }

// List returns copies of the tasks matching filter, newest first.
func (s *Store) List(filter Filter) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.match(t) {
			out = append(out, t.clone())
		}
	}
	return out
}

// Snapshot returns a copy of the whole ordered sequence.
func (s *Store) Snapshot() []Task { return s.List(FilterAll) }

func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i].clone(), true
	}
	return Task{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Create validates d and commits it at the head of the list. A scheduled
// draft that overlaps pending tasks returns a *ConflictError and commits
// nothing.
func (s *Store) Create(ctx context.Context, d Draft) (Task, error) {
	t, err := s.build(d)
	if err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if iv, ok := t.Interval(); ok {
		if c := ComputeConflicts(iv, s.tasks); len(c) > 0 {
			return Task{}, &ConflictError{Conflicts: c}
		}
	}
	s.tasks = append([]Task{t}, s.tasks...)
	s.saveLocked(ctx)

	s.log.Debug("task created", logx.String("id", t.ID), logx.Bool("scheduled", t.IsScheduled()))
	eventbus.Publish(s.bus, eventbus.TaskCreated, t.clone())
	return t.clone(), nil
}

// Overwrite removes the tasks named by conflictIDs and commits d at the head
// of the list as one step. If d still conflicts with a task that was not
// named, nothing changes and a *ConflictError is returned. Unknown ids are
// ignored.
func (s *Store) Overwrite(ctx context.Context, conflictIDs []string, d Draft) (Task, error) {
	t, err := s.build(d)
	if err != nil {
		return Task{}, err
	}
	drop := make(map[string]struct{}, len(conflictIDs))
	for _, id := range conflictIDs {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := make([]Task, 0, len(s.tasks)+1)
	remaining = append(remaining, t)
	removed := 0
	for _, cur := range s.tasks {
		if _, ok := drop[cur.ID]; ok {
			removed++
			continue
		}
		remaining = append(remaining, cur)
	}
	if iv, ok := t.Interval(); ok {
		if c := ComputeConflicts(iv, remaining[1:]); len(c) > 0 {
			return Task{}, &ConflictError{Conflicts: c}
		}
	}
	s.tasks = remaining
	s.saveLocked(ctx)

	s.log.Debug("task overwrite committed", logx.String("id", t.ID), logx.Int("removed", removed))
	eventbus.Publish(s.bus, eventbus.TaskOverwritten, t.clone())
	return t.clone(), nil
}

// ToggleComplete flips the completed flag. Absent ids are a no-op.
func (s *Store) ToggleComplete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	s.saveLocked(ctx)
	eventbus.Publish(s.bus, eventbus.TaskToggled, s.tasks[i].clone())
	return true
}

// Delete removes the task. Absent ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	t := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.saveLocked(ctx)
	eventbus.Publish(s.bus, eventbus.TaskDeleted, t)
	return true
}

// MarkFired records that the task's alarm went off. It is the only way to
// set the fired flag and it never clears it. Returns true only on the
// transition.
func (s *Store) MarkFired(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	sch := s.tasks[i].Schedule
	if sch == nil || !sch.Alarm.Armed || sch.Alarm.Fired {
		return false
	}
	sch.Alarm.Fired = true
	s.saveLocked(ctx)
	return true
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) build(d Draft) (Task, error) {
	if err := d.validate(); err != nil {
		return Task{}, err
	}
	t := Task{
		ID:                   s.newID(),
		Text:                 strings.TrimSpace(d.Text),
		TotalDurationSeconds: d.DurationSeconds,
		CreatedAt:            s.now(),
	}
	if iv, ok := d.Interval(); ok {
		t.Schedule = &Schedule{
			StartMs: iv.StartMs,
			EndMs:   iv.EndMs,
			Label:   Label(d.Start.In(s.loc)),
			Alarm:   Alarm{Armed: true},
		}
	}
	return t, nil
}
