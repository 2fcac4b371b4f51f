// Package alarm fires one-shot task reminders.
//
// The engine polls: every scan takes a snapshot of the task store and
// fires each pending armed alarm whose HH:MM label equals the current
// wall-clock minute. Firing notifies (when permitted), chimes, and marks
// the alarm fired through the store, so each alarm goes off at most once.
package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"zenflow/internal/chime"
	"zenflow/internal/eventbus"
	"zenflow/internal/notify"
	"zenflow/internal/task"
	logx "zenflow/pkg/logx"
)

const (
	DefaultInterval = 10 * time.Second
	ReminderTitle   = "Task Reminder"
)

// Tasks is the part of the task store the engine reads and writes.
type Tasks interface {
	Snapshot() []task.Task
	MarkFired(ctx context.Context, id string) bool
}

type Config struct {
	Interval time.Duration
	Location *time.Location
	SoundRef string
}

// Fired describes one alarm that went off. It is the alarm.fired payload.
type Fired struct {
	TaskID string    `json:"task_id"`
	Text   string    `json:"text"`
	Label  string    `json:"label"`
	At     time.Time `json:"at"`
}

type Engine struct {
	tasks    Tasks
	notifier notify.Dispatcher
	player   chime.Player
	bus      eventbus.Publisher
	log      logx.Logger
	now      func() time.Time

	cfgMu sync.RWMutex
	cfg   Config

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	scanMu  sync.Mutex
	askOnce sync.Once
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithBus(bus eventbus.Publisher) Option {
	return func(e *Engine) { e.bus = bus }
}

func New(cfg Config, tasks Tasks, n notify.Dispatcher, p chime.Player, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if p == nil {
		p = chime.Nop{}
	}
	e := &Engine{
		tasks:    tasks,
		notifier: n,
		player:   p,
		log:      log.With(logx.String("comp", "alarm")),
		now:      time.Now,
		cfg:      normalize(cfg),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func normalize(cfg Config) Config {
	if cfg.Interval < time.Second {
		cfg.Interval = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return cfg
}

// Start schedules the periodic scan. The first scan runs immediately.
// Calling Start on a running engine restarts it with the current config.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()

	cfg := e.config()
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(cfg.Location), cron.WithChain(cron.Recover(cronLogger{e.log})))
	c.Schedule(startNow(cron.Every(cfg.Interval)), cron.FuncJob(func() {
		if runCtx.Err() != nil {
			return
		}
		e.Scan(runCtx, e.now())
	}))
	c.Start()
	e.cron, e.cancel = c, cancel
	e.log.Info("alarm scan started", logx.Duration("every", cfg.Interval), logx.String("tz", cfg.Location.String()))
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Stop cancels the scan and waits for an in-flight scan to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.cron == nil {
		return
	}
	e.cancel()
	<-e.cron.Stop().Done()
	e.cron, e.cancel = nil, nil
}

// Apply swaps the scan settings, restarting the scan if it was running.
func (e *Engine) Apply(ctx context.Context, cfg Config) {
	e.cfgMu.Lock()
	e.cfg = normalize(cfg)
	e.cfgMu.Unlock()
	e.mu.Lock()
	running := e.cron != nil
	e.mu.Unlock()
	if running {
		e.Start(ctx)
	}
}

// OnTaskCreated asks for notification permission the first time a
// scheduled task is created while the answer is still undetermined.
func (e *Engine) OnTaskCreated(ctx context.Context, t task.Task) {
	if e.notifier == nil || !t.IsScheduled() {
		return
	}
	if e.notifier.PermissionState() != notify.Undetermined {
		return
	}
	e.askOnce.Do(func() {
		state := e.notifier.RequestPermission(ctx)
		e.log.Debug("notification permission", logx.String("state", state.String()))
	})
}

// PrimePermission covers tasks that were already stored before this process
// started: if any of them still has an armed alarm, permission is asked for
// now under the same once-only rule as OnTaskCreated.
func (e *Engine) PrimePermission(ctx context.Context) {
	if e.notifier == nil {
		return
	}
	for _, t := range e.tasks.Snapshot() {
		if t.AlarmDue() {
			e.OnTaskCreated(ctx, t)
			return
		}
	}
}

// Scan fires every due alarm whose label matches now's HH:MM and returns
// what fired. Scans never overlap.
func (e *Engine) Scan(ctx context.Context, now time.Time) []Fired {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	cfg := e.config()
	label := task.Label(now.In(cfg.Location))
	var fired []Fired
	for _, t := range e.tasks.Snapshot() {
		if !t.AlarmDue() || t.Schedule.Label != label {
			continue
		}
		e.fire(ctx, t, cfg)
		f := Fired{TaskID: t.ID, Text: t.Text, Label: label, At: now}
		fired = append(fired, f)
		eventbus.Publish(e.bus, eventbus.AlarmFired, f)
	}
	return fired
}

func (e *Engine) fire(ctx context.Context, t task.Task, cfg Config) {
	log := e.log.With(logx.String("task", t.ID), logx.String("at", t.Schedule.Label))
	if e.notifier != nil && e.notifier.PermissionState() == notify.Granted {
		m := notify.Message{Title: ReminderTitle, Body: "It's time for: " + t.Text, Key: "alarm:" + t.ID}
		if err := e.notifier.Notify(ctx, m); err != nil {
			log.Debug("reminder not delivered", logx.Err(err))
		}
	}
	e.player.Play(cfg.SoundRef)
	if !e.tasks.MarkFired(ctx, t.ID) {
		// Deleted, completed or fired by someone else since the snapshot.
		log.Debug("alarm already settled")
		return
	}
	log.Info("alarm fired", logx.String("text", t.Text))
}
