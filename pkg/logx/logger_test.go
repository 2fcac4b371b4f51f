package logx

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestServiceFileSinkAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zenflow.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	l := log.With(String("comp", "tasks"))
	l.Debug("hidden")
	l.Info("task created", Int("count", 2), Err(errors.New("disk full")))

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	l.Debug("now visible")

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %v", len(lines), lines)
	}
	first := lines[0]
	if first["message"] != "task created" || first["comp"] != "tasks" || first["err"] != "disk full" {
		t.Fatalf("first line = %v", first)
	}
	if n, _ := first["count"].(float64); n != 2 {
		t.Fatalf("count = %v", first["count"])
	}
	if lines[1]["message"] != "now visible" || lines[1]["level"] != "debug" {
		t.Fatalf("second line = %v", lines[1])
	}
}

func TestNopAndZero(t *testing.T) {
	t.Parallel()
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	if Nop().IsZero() {
		t.Fatal("Nop should not be zero")
	}
	Nop().Error("dropped", String("k", "v"))
	if Nop().Enabled(LevelError) {
		t.Fatal("Nop should have nothing enabled")
	}
}
