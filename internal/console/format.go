package console

import (
	"fmt"
	"strings"
	"time"

	"zenflow/internal/focus"
	"zenflow/internal/task"
)

// ShortID trims an id to its first 8 characters for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatTask renders one task on a single line, e.g.
//
//	[x] 1a2b3c4d  09:00-09:30  write report  (30m) alarm:fired
func FormatTask(t task.Task) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString("[x] ")
	} else {
		b.WriteString("[ ] ")
	}
	fmt.Fprintf(&b, "%-8s  ", ShortID(t.ID))
	if s := t.Schedule; s != nil {
		fmt.Fprintf(&b, "%s-%s  ", s.Label, endLabel(s))
	} else {
		b.WriteString("unscheduled  ")
	}
	fmt.Fprintf(&b, "%s  (%s)", t.Text, t.Duration())
	if s := t.Schedule; s != nil {
		switch {
		case s.Alarm.Fired:
			b.WriteString(" alarm:fired")
		case s.Alarm.Armed:
			b.WriteString(" alarm:armed")
		}
	}
	return b.String()
}

func FormatTimer(s focus.Snapshot) string {
	state := "paused"
	if s.Running {
		state = "running"
	}
	return fmt.Sprintf("%s %s (%s)", s.Mode, s.Format(), state)
}

// endLabel derives the HH:MM end from the start label so it reads in the
// same zone the label was written in.
func endLabel(s *task.Schedule) string {
	start, err := time.Parse("15:04", s.Label)
	if err != nil {
		return "?"
	}
	return start.Add(time.Duration(s.EndMs-s.StartMs) * time.Millisecond).Format("15:04")
}
