package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zenflow/internal/config"
	"zenflow/internal/notify"
	"zenflow/internal/storage"
	"zenflow/internal/task"
)

type probeSink struct{ probes atomic.Int32 }

func (p *probeSink) Name() string                               { return "probe" }
func (p *probeSink) Probe(context.Context) error                { p.probes.Add(1); return nil }
func (p *probeSink) Send(context.Context, notify.Message) error { return nil }
func (p *probeSink) Close() error                               { return nil }

type recordSink struct {
	probeSink
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordSink) Send(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	r.sent = append(r.sent, m)
	r.mu.Unlock()
	return nil
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAppRequestsPermissionOnFirstScheduledTask(t *testing.T) {
	t.Parallel()
	sink := &probeSink{}
	path := writeConfig(t, "logging:\n  level: error\n  console: false\nalarm:\n  timezone: UTC\n")
	a, err := New(path, WithStorage(storage.NewMemory()), WithSink(sink), WithBell(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.Stop(ctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	ctx := context.Background()
	if _, err := a.Tasks().Create(ctx, task.Draft{Text: "loose", DurationSeconds: 60}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	start := time.Now().Add(90 * time.Minute)
	for i := 0; i < 2; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		if _, err := a.Tasks().Create(ctx, task.Draft{Text: "scheduled", DurationSeconds: 60, Start: &s}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.probes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := sink.probes.Load(); n != 1 {
		t.Fatalf("probes = %d, want 1", n)
	}
	if a.notif.PermissionState() != notify.Granted {
		t.Fatalf("permission = %v", a.notif.PermissionState())
	}
}

func TestAppRemindsTasksStoredBeforeStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf("logging:\n  level: error\n  console: false\nalarm:\n  timezone: UTC\nstorage:\n  driver: file\n  path: %q\n", dir))
	stop := func(a *App) {
		t.Helper()
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.Stop(sctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}

	// A one-shot command stores the task without starting the engine.
	start := time.Now().UTC().Add(3 * time.Hour).Truncate(time.Minute)
	oneShot, err := New(path, WithSink(&recordSink{}), WithBell(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := oneShot.Tasks().Create(ctx, task.Draft{Text: "standup", DurationSeconds: 900, Start: &start}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := oneShot.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sink := &recordSink{}
	a, err := New(path, WithSink(sink), WithBell(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if fired := a.Alarms().Scan(ctx, start); len(fired) != 1 {
		stop(a)
		t.Fatalf("fired = %v, want the stored task", fired)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop(a)
	if n := sink.count(); n != 1 {
		t.Fatalf("reminders sent = %d, want 1", n)
	}
	if n := sink.probes.Load(); n != 1 {
		t.Fatalf("probes = %d, want 1", n)
	}

	// The answer is remembered across restarts.
	again := &recordSink{}
	b, err := New(path, WithSink(again), WithBell(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	if got := b.notif.PermissionState(); got != notify.Granted {
		t.Fatalf("permission after restart = %v, want granted", got)
	}
	if n := again.probes.Load(); n != 0 {
		t.Fatalf("probes after restart = %d, want 0", n)
	}
}

func TestAppAppliesReloadedConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "logging:\n  console: false\ntimer:\n  sound: true\n")
	a, err := New(path, WithStorage(storage.NewMemory()), WithSink(&probeSink{}), WithBell(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	if err := os.WriteFile(path, []byte("logging:\n  console: false\ntimer:\n  sound: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := a.cfgm.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.Timer().SoundEnabled() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if a.Timer().SoundEnabled() {
		t.Fatal("timer sound not muted by reload")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		name    string
		sc      config.StorageConfig
		driver  string
		path    string
		wantErr bool
	}{
		{name: "memory", sc: config.StorageConfig{Driver: "none"}, driver: "memory"},
		{name: "file", sc: config.StorageConfig{Driver: "file", Path: dir}, driver: "file", path: dir},
		{name: "sqlite", sc: config.StorageConfig{Driver: "SQLite", Path: filepath.Join(dir, "z.db")}, driver: "sqlite", path: filepath.Join(dir, "z.db")},
		{name: "unknown", sc: config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage = tt.sc
			got, err := mapStorageConfig(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("mapStorageConfig: %v", err)
			}
			if got.Driver != tt.driver || (tt.path != "" && got.Path != tt.path) {
				t.Fatalf("got %+v", got)
			}
		})
	}
}
