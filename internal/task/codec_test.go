package task

import (
	"strconv"
	"testing"
	"time"
)

func TestDecodeLegacyRecords(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC).UnixMilli()
	blob := []byte(`[
		{"id":"1","text":"legacy","completed":false,"totalDuration":600,"scheduledTime":"14:30","startTimeMs":` + itoa(start) + `,"endTimeMs":` + itoa(start+600000) + `,"createdAt":1},
		{"id":"2","text":"derived","totalDuration":60,"startTimeMs":` + itoa(start) + `,"createdAt":2},
		{"id":"3","text":"fired","totalDuration":60,"startTimeMs":` + itoa(start) + `,"isAlarmSet":false,"alarmTriggered":true,"createdAt":3},
		{"id":"","text":"no id","totalDuration":60},
		{"id":"5","text":"no duration","totalDuration":0},
		{"id":"1","text":"duplicate","totalDuration":60}
	]`)
	tasks, skipped, err := decodeTasks(blob, time.UTC)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if skipped != 3 {
		t.Fatalf("skipped = %d, want 3", skipped)
	}
	if !sameIDs(ids(tasks), []string{"1", "2", "3"}) {
		t.Fatalf("ids = %v", ids(tasks))
	}
	if a := tasks[0].Schedule.Alarm; !a.Armed || a.Fired {
		t.Fatalf("legacy alarm = %+v, want armed", a)
	}
	if s := tasks[1].Schedule; s.Label != "14:30" || s.EndMs != start+60000 {
		t.Fatalf("derived schedule = %+v", s)
	}
	if a := tasks[2].Schedule.Alarm; !a.Armed || !a.Fired {
		t.Fatalf("fired alarm = %+v, fired implies armed", a)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
