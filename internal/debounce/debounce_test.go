package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerBurstRunsOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	d := New(30*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	if !d.Pending() {
		t.Fatal("expected pending call during quiet period")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if d.Pending() {
		t.Fatal("nothing should be pending after the call ran")
	}
}

func TestTriggerRestartsQuietPeriod(t *testing.T) {
	t.Parallel()
	var ranAt atomic.Int64
	quiet := 40 * time.Millisecond
	d := New(quiet, func() { ranAt.Store(time.Now().UnixNano()) })

	start := time.Now()
	d.Trigger()
	time.Sleep(25 * time.Millisecond)
	d.Trigger()
	time.Sleep(150 * time.Millisecond)

	got := time.Duration(ranAt.Load() - start.UnixNano())
	if ranAt.Load() == 0 {
		t.Fatal("call never ran")
	}
	if got < 25*time.Millisecond+quiet {
		t.Fatalf("ran after %v, want at least %v", got, 25*time.Millisecond+quiet)
	}
}

func TestCancelAndFlush(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })

	if d.Cancel() {
		t.Fatal("Cancel with nothing pending should report false")
	}
	d.Trigger()
	if !d.Cancel() {
		t.Fatal("Cancel should report the pending call")
	}
	if d.Flush() {
		t.Fatal("Flush after Cancel should have nothing to run")
	}

	d.Trigger()
	if !d.Flush() {
		t.Fatal("Flush should run the pending call")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestDefaultQuiet(t *testing.T) {
	t.Parallel()
	if got := New(0, nil).Quiet(); got != DefaultQuiet {
		t.Fatalf("Quiet() = %v, want %v", got, DefaultQuiet)
	}
}
