package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// record is the persisted shape of a task. It stays flat so blobs written
// by earlier versions (without the alarm flags) still decode.
type record struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Completed      bool   `json:"completed"`
	TotalDuration  int64  `json:"totalDuration"`
	ScheduledTime  string `json:"scheduledTime,omitempty"`
	StartTimeMs    int64  `json:"startTimeMs,omitempty"`
	EndTimeMs      int64  `json:"endTimeMs,omitempty"`
	IsAlarmSet     *bool  `json:"isAlarmSet,omitempty"`
	AlarmTriggered bool   `json:"alarmTriggered,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

func encodeTasks(tasks []Task) ([]byte, error) {
	recs := make([]record, 0, len(tasks))
	for _, t := range tasks {
		r := record{
			ID:            t.ID,
			Text:          t.Text,
			Completed:     t.Completed,
			TotalDuration: t.TotalDurationSeconds,
			CreatedAt:     t.CreatedAt.UnixMilli(),
		}
		if s := t.Schedule; s != nil {
			armed := s.Alarm.Armed
			r.ScheduledTime = s.Label
			r.StartTimeMs = s.StartMs
			r.EndTimeMs = s.EndMs
			r.IsAlarmSet = &armed
			r.AlarmTriggered = s.Alarm.Fired
		}
		recs = append(recs, r)
	}
	return json.Marshal(recs)
}

// decodeTasks parses a persisted blob. Records that can't form a valid task
// are skipped and counted; a blob that isn't a JSON array is an error.
func decodeTasks(b []byte, loc *time.Location) ([]Task, int, error) {
	var recs []record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, 0, fmt.Errorf("decode tasks: %w", err)
	}
	out := make([]Task, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	skipped := 0
	for _, r := range recs {
		t, ok := r.task(loc)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[t.ID]; dup {
			skipped++
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, skipped, nil
}

func (r record) task(loc *time.Location) (Task, bool) {
	if strings.TrimSpace(r.ID) == "" || r.TotalDuration <= 0 {
		return Task{}, false
	}
	t := Task{
		ID:                   r.ID,
		Text:                 r.Text,
		Completed:            r.Completed,
		TotalDurationSeconds: r.TotalDuration,
		CreatedAt:            time.UnixMilli(r.CreatedAt),
	}
	if r.StartTimeMs == 0 {
		return t, true
	}
	end := r.EndTimeMs
	if end <= r.StartTimeMs {
		end = r.StartTimeMs + r.TotalDuration*1000
	}
	label := r.ScheduledTime
	if label == "" {
		label = Label(time.UnixMilli(r.StartTimeMs).In(loc))
	}
	armed := true
	if r.IsAlarmSet != nil {
		armed = *r.IsAlarmSet
	}
	fired := r.AlarmTriggered
	if fired {
		armed = true
	}
	t.Schedule = &Schedule{
		StartMs: r.StartTimeMs,
		EndMs:   end,
		Label:   label,
		Alarm:   Alarm{Armed: armed, Fired: fired},
	}
	return t, true
}
