package task

import (
	"context"
	"errors"
	"math"
	"testing"

	"zenflow/internal/eventbus"
	"zenflow/internal/storage"
	logx "zenflow/pkg/logx"
)

func TestCreateRejectsInvalidDuration(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, nil)
	for _, secs := range []int64{0, -60} {
		_, err := s.Create(context.Background(), Draft{Text: "x", DurationSeconds: secs})
		if !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("duration %d: err = %v, want ErrInvalidDuration", secs, err)
		}
	}
	if _, err := s.Create(context.Background(), Draft{Text: "   ", DurationSeconds: 60}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("blank text: err = %v, want ErrEmptyText", err)
	}
	if s.Len() != 0 {
		t.Fatalf("nothing should be committed, got %d tasks", s.Len())
	}
}

func TestCreateRejectsOversizedDuration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	if _, err := s.Create(ctx, scheduled("standup", at(9, 0), 30)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, secs := range []int64{MaxDurationSeconds + 1, math.MaxInt64/1000 + 1, math.MaxInt64} {
		d := Draft{Text: "forever", DurationSeconds: secs, Start: at(8, 0)}
		if _, ok := d.Interval(); ok {
			t.Fatalf("duration %d: Interval should be unusable", secs)
		}
		if _, err := s.Create(ctx, d); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("duration %d: err = %v, want ErrInvalidDuration", secs, err)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("tasks = %d, want 1", s.Len())
	}

	d := Draft{Text: "long haul", DurationSeconds: MaxDurationSeconds, Start: at(10, 0)}
	iv, ok := d.Interval()
	if !ok || iv.EndMs <= iv.StartMs {
		t.Fatalf("max duration interval = %+v, %v", iv, ok)
	}
	if _, err := s.Create(ctx, d); err != nil {
		t.Fatalf("max duration Create: %v", err)
	}
}

func TestConflictScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)

	a, err := s.Create(ctx, scheduled("A", at(9, 0), 30))
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	if a.Schedule == nil || a.Schedule.Label != "09:00" {
		t.Fatalf("A schedule = %+v, want label 09:00", a.Schedule)
	}
	if got := a.Schedule.EndMs - a.Schedule.StartMs; got != 30*60*1000 {
		t.Fatalf("A window = %dms, want 30m", got)
	}
	if !a.Schedule.Alarm.Armed || a.Schedule.Alarm.Fired {
		t.Fatalf("A alarm = %+v, want armed and not fired", a.Schedule.Alarm)
	}

	b := scheduled("B", at(9, 15), 10)
	_, err = s.Create(ctx, b)
	var ce *ConflictError
	if !errors.As(err, &ce) || !errors.Is(err, ErrSchedulingConflict) {
		t.Fatalf("create B err = %v, want ConflictError", err)
	}
	if !sameIDs(ids(ce.Conflicts), []string{a.ID}) {
		t.Fatalf("conflicts = %v, want [%s]", ids(ce.Conflicts), a.ID)
	}
	if s.Len() != 1 {
		t.Fatalf("conflicting create committed something: %d tasks", s.Len())
	}

	// Touching A's end is not a conflict.
	c, err := s.Create(ctx, scheduled("C", at(9, 30), 15))
	if err != nil {
		t.Fatalf("create C: %v", err)
	}

	got, err := s.Overwrite(ctx, ce.IDs(), b)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	list := s.List(FilterAll)
	if !sameIDs(ids(list), []string{got.ID, c.ID}) {
		t.Fatalf("list after overwrite = %v, want [%s %s]", ids(list), got.ID, c.ID)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatal("A should have been removed by overwrite")
	}
}

func TestConflictsReturnedNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	first, _ := s.Create(ctx, scheduled("first", at(9, 0), 30))
	second, _ := s.Create(ctx, scheduled("second", at(10, 0), 30))

	_, err := s.Create(ctx, scheduled("wide", at(8, 0), 180))
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if !sameIDs(ce.IDs(), []string{second.ID, first.ID}) {
		t.Fatalf("conflict order = %v, want newest first", ce.IDs())
	}
}

func TestCompletedAndUnscheduledNeverConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	a, _ := s.Create(ctx, scheduled("A", at(9, 0), 30))
	if _, err := s.Create(ctx, Draft{Text: "loose", DurationSeconds: 600}); err != nil {
		t.Fatalf("unscheduled create: %v", err)
	}
	s.ToggleComplete(ctx, a.ID)
	if _, err := s.Create(ctx, scheduled("B", at(9, 10), 10)); err != nil {
		t.Fatalf("create over completed task: %v", err)
	}
}

func TestOverwriteEmptyEqualsCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s1 := newTestStore(t, nil)
	s2 := newTestStore(t, nil)
	d := scheduled("A", at(9, 0), 30)

	c, err1 := s1.Create(ctx, d)
	o, err2 := s2.Overwrite(ctx, nil, d)
	if err1 != nil || err2 != nil {
		t.Fatalf("create err %v, overwrite err %v", err1, err2)
	}
	if c.ID != o.ID || c.Text != o.Text || *c.Schedule != *o.Schedule || !c.CreatedAt.Equal(o.CreatedAt) {
		t.Fatalf("overwrite(nil) = %+v, create = %+v", o, c)
	}
}

func TestOverwriteIsAllOrNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	a, _ := s.Create(ctx, scheduled("A", at(9, 0), 30))
	b, _ := s.Create(ctx, scheduled("B", at(9, 30), 30))

	// Naming only A leaves B in the way.
	_, err := s.Overwrite(ctx, []string{a.ID}, scheduled("wide", at(9, 0), 60))
	var ce *ConflictError
	if !errors.As(err, &ce) || !sameIDs(ce.IDs(), []string{b.ID}) {
		t.Fatalf("err = %v, want conflict with B", err)
	}
	if !sameIDs(ids(s.Snapshot()), []string{b.ID, a.ID}) {
		t.Fatalf("store changed on failed overwrite: %v", ids(s.Snapshot()))
	}

	if _, err := s.Overwrite(ctx, []string{a.ID}, Draft{Text: "x"}); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("invalid overwrite err = %v", err)
	}
	if s.Len() != 2 {
		t.Fatal("invalid overwrite removed tasks")
	}
}

func TestToggleDeleteMissingAreNoops(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	if s.ToggleComplete(ctx, "nope") || s.Delete(ctx, "nope") || s.MarkFired(ctx, "nope") {
		t.Fatal("mutations on a missing id should report false")
	}
	a, _ := s.Create(ctx, Draft{Text: "A", DurationSeconds: 60})
	if !s.ToggleComplete(ctx, a.ID) {
		t.Fatal("toggle existing task")
	}
	if got := s.List(FilterCompleted); !sameIDs(ids(got), []string{a.ID}) {
		t.Fatalf("completed = %v", ids(got))
	}
	if got := s.List(FilterActive); len(got) != 0 {
		t.Fatalf("active = %v, want none", ids(got))
	}
	if !s.Delete(ctx, a.ID) || s.Len() != 0 {
		t.Fatal("delete existing task")
	}
}

func TestMarkFiredIsOneWay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	loose, _ := s.Create(ctx, Draft{Text: "loose", DurationSeconds: 60})
	a, _ := s.Create(ctx, scheduled("A", at(9, 0), 30))

	if s.MarkFired(ctx, loose.ID) {
		t.Fatal("unscheduled task has no alarm to fire")
	}
	if !s.MarkFired(ctx, a.ID) {
		t.Fatal("first MarkFired should transition")
	}
	if s.MarkFired(ctx, a.ID) {
		t.Fatal("second MarkFired should be a no-op")
	}
	s.ToggleComplete(ctx, a.ID)
	s.ToggleComplete(ctx, a.ID)
	got, _ := s.Get(a.ID)
	if !got.Schedule.Alarm.Fired || got.AlarmDue() {
		t.Fatalf("alarm = %+v, fired must stay set", got.Schedule.Alarm)
	}
}

func TestListReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil)
	a, _ := s.Create(ctx, scheduled("A", at(9, 0), 30))
	list := s.List(FilterAll)
	list[0].Schedule.Alarm.Fired = true
	list[0].Text = "mutated"
	got, _ := s.Get(a.ID)
	if got.Schedule.Alarm.Fired || got.Text != "A" {
		t.Fatal("List leaked internal state")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := storage.NewMemory()
	s := newTestStore(t, mem)
	a, _ := s.Create(ctx, scheduled("A", at(9, 0), 30))
	b, _ := s.Create(ctx, Draft{Text: "B", DurationSeconds: 90})
	s.MarkFired(ctx, a.ID)
	s.ToggleComplete(ctx, b.ID)

	reloaded := newTestStore(t, mem)
	list := reloaded.List(FilterAll)
	if !sameIDs(ids(list), []string{b.ID, a.ID}) {
		t.Fatalf("reloaded order = %v", ids(list))
	}
	if !list[0].Completed || list[0].IsScheduled() {
		t.Fatalf("B = %+v", list[0])
	}
	if sch := list[1].Schedule; sch == nil || sch.Label != "09:00" || !sch.Alarm.Fired || !sch.Alarm.Armed {
		t.Fatalf("A schedule = %+v", sch)
	}
	if !list[1].CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("createdAt = %v, want %v", list[1].CreatedAt, a.CreatedAt)
	}
}

func TestCorruptOrMissingPersistenceStartsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, blob := range map[string]string{
		"garbage": "{not json",
		"object":  `{"id":"x"}`,
		"empty":   "",
	} {
		mem := storage.NewMemory()
		if blob != "" {
			_ = mem.Set(ctx, DefaultKey, []byte(blob))
		}
		s := NewStore(ctx, mem, logx.Nop())
		if s.Len() != 0 {
			t.Fatalf("%s: want empty store, got %d", name, s.Len())
		}
		if _, err := s.Create(ctx, Draft{Text: "ok", DurationSeconds: 1}); err != nil {
			t.Fatalf("%s: create after recovery: %v", name, err)
		}
	}
}

func TestStorePublishesEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()
	s := NewStore(ctx, nil, logx.Nop(), WithBus(bus))

	a, _ := s.Create(ctx, Draft{Text: "A", DurationSeconds: 60})
	s.Delete(ctx, a.ID)

	for _, want := range []string{eventbus.TaskCreated, eventbus.TaskDeleted} {
		if e := <-ch; e.Type != want {
			t.Fatalf("event = %q, want %q", e.Type, want)
		}
	}
}
