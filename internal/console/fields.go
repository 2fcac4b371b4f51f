package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"zenflow/internal/task"
)

// BuildFields turns the user's add arguments into task form fields.
//
// at is a clock time ("9:15pm", "09:15 AM", "21:15"); empty leaves the
// task unscheduled. on is a YYYY-MM-DD date defaulting to now's date. dur
// is a Go duration ("25m", "1h30m").
func BuildFields(text, at, on, dur string, now time.Time) (task.Fields, error) {
	f := task.Fields{Text: strings.TrimSpace(text)}

	if strings.TrimSpace(dur) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(dur))
		if err != nil {
			return f, fmt.Errorf("invalid duration %q: %w", dur, err)
		}
		total := int(d / time.Second)
		f.DurHours, f.DurMinutes, f.DurSeconds = total/3600, total%3600/60, total%60
	}

	day := now
	if s := strings.TrimSpace(on); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, now.Location())
		if err != nil {
			return f, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", on)
		}
		day = d
	}
	f.Year, f.Month, f.Day = day.Year(), int(day.Month()), day.Day()

	if strings.TrimSpace(at) == "" {
		return f, nil
	}
	hour, minute, pm, err := parseClock(at)
	if err != nil {
		return f, err
	}
	f.HasTime, f.Hour, f.Minute, f.PM = true, hour, minute, pm
	return f, nil
}

// parseClock returns a 12-hour clock reading. 24-hour input is converted.
func parseClock(s string) (hour, minute int, pm bool, err error) {
	raw := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	suffix := ""
	switch {
	case strings.HasSuffix(raw, "am"), strings.HasSuffix(raw, "pm"):
		suffix = raw[len(raw)-2:]
		raw = raw[:len(raw)-2]
	}
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		mm = "0"
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || m < 0 || m > 59 {
		return 0, 0, false, fmt.Errorf("invalid time %q", s)
	}
	if suffix != "" {
		if h < 1 || h > 12 {
			return 0, 0, false, fmt.Errorf("invalid time %q: hour must be 1-12", s)
		}
		return h, m, suffix == "pm", nil
	}
	if h < 0 || h > 23 {
		return 0, 0, false, fmt.Errorf("invalid time %q: hour must be 0-23", s)
	}
	pm = h >= 12
	h %= 12
	if h == 0 {
		h = 12
	}
	return h, m, pm, nil
}
