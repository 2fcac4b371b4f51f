package task

import (
	"context"
	"fmt"
	"testing"
	"time"

	"zenflow/internal/storage"
	logx "zenflow/pkg/logx"
)

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hh, mm int) *time.Time {
	t := testDay.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
	return &t
}

func scheduled(text string, start *time.Time, minutes int) Draft {
	return Draft{Text: text, DurationSeconds: int64(minutes) * 60, Start: start}
}

// newTestStore returns a store with sequential ids ("t1", "t2", ...) and a
// clock that advances one second per task.
func newTestStore(t *testing.T, persist storage.Store) *Store {
	t.Helper()
	n := 0
	clock := testDay
	return NewStore(context.Background(), persist, logx.Nop(),
		WithLocation(time.UTC),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("t%d", n) }),
		WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
	)
}

func ids(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
