package task

import (
	"fmt"
	"strings"
	"time"
)

// MaxDurationSeconds caps a task's length at ten years, which keeps every
// interval end well inside int64 milliseconds.
const MaxDurationSeconds int64 = 10 * 366 * 24 * 60 * 60

// Draft is a task that has not been committed yet. A nil Start makes the
// task unscheduled.
type Draft struct {
	Text            string
	DurationSeconds int64
	Start           *time.Time
}

// Interval returns the window the draft would occupy, or false when the
// draft is unscheduled or has no usable duration.
func (d Draft) Interval() (Interval, bool) {
	if d.Start == nil || d.DurationSeconds <= 0 || d.DurationSeconds > MaxDurationSeconds {
		return Interval{}, false
	}
	start := d.Start.UnixMilli()
	end := start + d.DurationSeconds*1000
	if end <= start {
		return Interval{}, false
	}
	return Interval{StartMs: start, EndMs: end}, true
}

func (d Draft) validate() error {
	if d.DurationSeconds <= 0 {
		return ErrInvalidDuration
	}
	if d.DurationSeconds > MaxDurationSeconds {
		return fmt.Errorf("%w: longer than %d seconds", ErrInvalidDuration, MaxDurationSeconds)
	}
	if d.Start != nil {
		if _, ok := d.Interval(); !ok {
			return fmt.Errorf("%w: end time out of range", ErrInvalidDuration)
		}
	}
	if strings.TrimSpace(d.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Fields mirrors a task entry form: a calendar date, an optional 12-hour
// clock time and a duration split into hours, minutes and seconds.
// HasTime=false leaves the resulting draft unscheduled.
type Fields struct {
	Text string

	Day, Month, Year int

	HasTime bool
	Hour    int // 1-12
	Minute  int
	PM      bool

	DurHours, DurMinutes, DurSeconds int
}

// DurationSeconds sums the duration fields.
func (f Fields) DurationSeconds() int64 {
	return int64(f.DurHours)*3600 + int64(f.DurMinutes)*60 + int64(f.DurSeconds)
}

// Draft converts the form fields into a draft in loc.
func (f Fields) Draft(loc *time.Location) Draft {
	if loc == nil {
		loc = time.Local
	}
	d := Draft{Text: f.Text, DurationSeconds: f.DurationSeconds()}
	if !f.HasTime {
		return d
	}
	h := f.Hour
	if f.PM && h < 12 {
		h += 12
	}
	if !f.PM && h == 12 {
		h = 0
	}
	start := time.Date(f.Year, time.Month(f.Month), f.Day, h, f.Minute, 0, 0, loc)
	d.Start = &start
	return d
}
