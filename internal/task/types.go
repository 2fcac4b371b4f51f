package task

import (
	"time"
)

// Filter selects a view over the task list.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter maps user input to a Filter. Unknown values select all.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterActive, FilterCompleted:
		return Filter(s)
	default:
		return FilterAll
	}
}

func (f Filter) match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Alarm is the one-shot reminder state of a scheduled task.
// Fired implies Armed, and Fired never goes back to false.
type Alarm struct {
	Armed bool
	Fired bool
}

// Due reports whether the alarm still has to fire.
func (a Alarm) Due() bool { return a.Armed && !a.Fired }

// Schedule is the time-boxed part of a task: the half-open window
// [StartMs, EndMs) in unix milliseconds and its HH:MM label.
type Schedule struct {
	StartMs int64
	EndMs   int64
	Label   string
	Alarm   Alarm
}

func (s Schedule) Interval() Interval { return Interval{StartMs: s.StartMs, EndMs: s.EndMs} }

func (s Schedule) Start() time.Time { return time.UnixMilli(s.StartMs) }

// Task is a unit of work. A nil Schedule means the task is unscheduled and
// carries no alarm.
type Task struct {
	ID                   string
	Text                 string
	Completed            bool
	TotalDurationSeconds int64
	Schedule             *Schedule
	CreatedAt            time.Time
}

func (t Task) IsScheduled() bool { return t.Schedule != nil }

// Interval returns the task's window, or false when unscheduled.
func (t Task) Interval() (Interval, bool) {
	if t.Schedule == nil {
		return Interval{}, false
	}
	return t.Schedule.Interval(), true
}

// AlarmDue reports whether the alarm engine should still consider this task.
func (t Task) AlarmDue() bool {
	return !t.Completed && t.Schedule != nil && t.Schedule.Alarm.Due()
}

func (t Task) Duration() time.Duration {
	return time.Duration(t.TotalDurationSeconds) * time.Second
}

func (t Task) clone() Task {
	if t.Schedule != nil {
		s := *t.Schedule
		t.Schedule = &s
	}
	return t
}

// Interval is a half-open window [StartMs, EndMs) in unix milliseconds.
type Interval struct {
	StartMs int64
	EndMs   int64
}

// Overlaps reports whether the two half-open windows intersect.
// Windows that only touch at a boundary do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.StartMs < o.EndMs && i.EndMs > o.StartMs
}

// Label formats t as the fixed HH:MM label used for alarm matching.
func Label(t time.Time) string { return t.Format("15:04") }
