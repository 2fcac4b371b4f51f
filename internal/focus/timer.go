// Package focus implements the fixed-length focus/break countdown.
package focus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"zenflow/internal/chime"
	"zenflow/internal/eventbus"
	logx "zenflow/pkg/logx"
)

type Mode string

const (
	Focus      Mode = "focus"
	ShortBreak Mode = "shortBreak"
	LongBreak  Mode = "longBreak"
)

// Seconds is the full length of the mode. Unknown modes count as focus.
func (m Mode) Seconds() int {
	switch m {
	case ShortBreak:
		return 300
	case LongBreak:
		return 900
	default:
		return 1500
	}
}

func (m Mode) Valid() bool { return m == Focus || m == ShortBreak || m == LongBreak }

// ParseMode accepts the mode names case-insensitively, plus "short" and
// "long".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "focus":
		return Focus, nil
	case "shortbreak", "short":
		return ShortBreak, nil
	case "longbreak", "long":
		return LongBreak, nil
	}
	return "", fmt.Errorf("unknown timer mode %q", s)
}

// Ticker is the part of time.Ticker the timer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// Snapshot is the observable timer state. It is also the timer.* event
// payload.
type Snapshot struct {
	Mode      Mode `json:"mode"`
	Remaining int  `json:"remaining"`
	Running   bool `json:"running"`
}

// Format renders the remaining time as MM:SS.
func (s Snapshot) Format() string { return Format(s.Remaining) }

func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Timer is a countdown that is paused initially. While running it ticks
// once a second; reaching zero pauses it and plays one completion chime.
type Timer struct {
	mu        sync.Mutex
	mode      Mode
	remaining int
	running   bool
	sound     bool
	stop      chan struct{} // closed to end the current tick loop
	wg        sync.WaitGroup

	every     time.Duration
	newTicker func(time.Duration) Ticker
	player    chime.Player
	soundRef  string
	bus       eventbus.Publisher
	log       logx.Logger
}

type Option func(*Timer)

// WithTicker replaces the one-second ticker, e.g. with a manual one in tests.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(t *Timer) {
		if fn != nil {
			t.newTicker = fn
		}
	}
}

func WithChime(p chime.Player, ref string) Option {
	return func(t *Timer) {
		if p != nil {
			t.player = p
		}
		t.soundRef = ref
	}
}

func WithBus(bus eventbus.Publisher) Option { return func(t *Timer) { t.bus = bus } }

func WithLogger(log logx.Logger) Option {
	return func(t *Timer) {
		if !log.IsZero() {
			t.log = log.With(logx.String("comp", "focus"))
		}
	}
}

func New(opts ...Option) *Timer {
	t := &Timer{
		mode:      Focus,
		remaining: Focus.Seconds(),
		sound:     true,
		every:     time.Second,
		newTicker: newRealTicker,
		player:    chime.Nop{},
		log:       logx.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) snapshotLocked() Snapshot {
	return Snapshot{Mode: t.mode, Remaining: t.remaining, Running: t.running}
}

// Start resumes the countdown. It does nothing when already running or
// when no time is left.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running || t.remaining <= 0 {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.armLocked()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.log.Debug("timer started", logx.String("mode", string(snap.Mode)), logx.Int("remaining", snap.Remaining))
	eventbus.Publish(t.bus, eventbus.TimerStarted, snap)
}

func (t *Timer) Pause() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.disarmLocked()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	eventbus.Publish(t.bus, eventbus.TimerPaused, snap)
}

// Toggle starts a paused timer and pauses a running one.
func (t *Timer) Toggle() {
	if t.Snapshot().Running {
		t.Pause()
		return
	}
	t.Start()
}

// Reset pauses and refills the current mode.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.running = false
	t.disarmLocked()
	t.remaining = t.mode.Seconds()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	eventbus.Publish(t.bus, eventbus.TimerReset, snap)
}

// SwitchMode cancels any pending tick and loads m paused and full.
func (t *Timer) SwitchMode(m Mode) {
	if !m.Valid() {
		m = Focus
	}
	t.mu.Lock()
	t.running = false
	t.disarmLocked()
	t.mode = m
	t.remaining = m.Seconds()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.log.Debug("timer mode switched", logx.String("mode", string(m)))
	eventbus.Publish(t.bus, eventbus.TimerMode, snap)
}

// SetSoundEnabled mutes or unmutes the completion chime.
func (t *Timer) SetSoundEnabled(on bool) {
	t.mu.Lock()
	t.sound = on
	t.mu.Unlock()
}

func (t *Timer) SoundEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sound
}

// Close stops the tick loop and waits for it to exit.
func (t *Timer) Close() {
	t.mu.Lock()
	t.running = false
	t.disarmLocked()
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Timer) armLocked() {
	stop := make(chan struct{})
	t.stop = stop
	tk := t.newTicker(t.every)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C():
				if !t.tick(stop) {
					return
				}
			}
		}
	}()
}

func (t *Timer) disarmLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// tick counts down one second for the loop owning stop. It reports whether
// that loop should keep going.
func (t *Timer) tick(stop chan struct{}) bool {
	t.mu.Lock()
	if !t.running || t.stop != stop {
		t.mu.Unlock()
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining > 0 {
		t.mu.Unlock()
		return true
	}
	t.running = false
	t.disarmLocked()
	sound := t.sound
	snap := t.snapshotLocked()
	t.mu.Unlock()

	if sound {
		t.player.Play(t.soundRef)
	}
	t.log.Info("timer completed", logx.String("mode", string(snap.Mode)))
	eventbus.Publish(t.bus, eventbus.TimerCompleted, snap)
	return false
}
