// Package debounce runs a function once a burst of triggers has gone quiet.
package debounce

import (
	"sync"
	"time"
)

// DefaultQuiet is the quiet period used when none is configured.
const DefaultQuiet = 500 * time.Millisecond

// Debouncer calls fn after quiet has elapsed with no further Trigger calls.
// Each Trigger restarts the wait. fn runs on the timer goroutine, never
// while the debouncer's lock is held.
type Debouncer struct {
	quiet time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	ver   uint64 // bumped on every Trigger/Cancel; stale callbacks compare against it
	armed bool
}

func New(quiet time.Duration, fn func()) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Debouncer{quiet: quiet, fn: fn}
}

func (d *Debouncer) Quiet() time.Duration { return d.quiet }

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.ver++
	ver := d.ver
	d.armed = true
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(ver) })
}

func (d *Debouncer) fire(ver uint64) {
	d.mu.Lock()
	if ver != d.ver || !d.armed {
		d.mu.Unlock()
		return
	}
	d.armed = false
	d.timer = nil
	d.mu.Unlock()
	if d.fn != nil {
		d.fn()
	}
}

// Pending reports whether a call is waiting for the quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Cancel drops a pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.ver++
	was := d.armed
	d.armed = false
	return was
}

// Flush runs a pending call now instead of waiting. It reports whether a
// call was pending.
func (d *Debouncer) Flush() bool {
	if !d.Cancel() {
		return false
	}
	if d.fn != nil {
		d.fn()
	}
	return true
}
