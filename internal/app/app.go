// Package app wires the engine's components together and owns their
// lifecycle.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"zenflow/internal/alarm"
	"zenflow/internal/chime"
	"zenflow/internal/config"
	"zenflow/internal/eventbus"
	"zenflow/internal/focus"
	"zenflow/internal/notify"
	rtsup "zenflow/internal/runtime/supervisor"
	"zenflow/internal/storage"
	"zenflow/internal/task"
	logx "zenflow/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	persist storage.Store
	tasks   *task.Store
	editor  *task.DraftEditor
	notif   *notify.Service
	alarms  *alarm.Engine
	timer   *focus.Timer
	player  chime.Player
}

type options struct {
	persist storage.Store
	sink    notify.Sink
	bell    io.Writer
}

type Option func(*options)

// WithStorage uses st instead of opening the configured driver.
func WithStorage(st storage.Store) Option { return func(o *options) { o.persist = st } }

// WithSink uses s instead of the configured notification sink.
func WithSink(s notify.Sink) Option { return func(o *options) { o.sink = s } }

// WithBell sets where the terminal bell chime is written. Default stderr.
func WithBell(w io.Writer) Option { return func(o *options) { o.bell = w } }

// New loads the config at cfgPath (a missing file means defaults) and
// builds every component. Nothing runs until Start.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{bell: os.Stderr}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	bus := eventbus.New()

	persist := o.persist
	if persist == nil {
		sc, err := mapStorageConfig(cfg)
		if err != nil {
			return nil, err
		}
		persist, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		log.Debug("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	loc := cfg.Location()
	tasks := task.NewStore(context.Background(), persist, log.With(logx.String("comp", "tasks")),
		task.WithLocation(loc), task.WithBus(bus))
	editor := task.NewDraftEditor(tasks, cfg.QuietPeriod())

	sink := o.sink
	if sink == nil {
		sink, err = notify.NewSink(mapSinkConfig(cfg), log.With(logx.String("comp", "notify.sink")))
		if err != nil {
			_ = persist.Close()
			return nil, err
		}
	}
	notif := notify.New(mapNotifierConfig(cfg), sink, log, bus, persist)

	player := chime.New(mapChimeConfig(cfg), o.bell, log.With(logx.String("comp", "chime")))
	alarms := alarm.New(mapAlarmConfig(cfg), tasks, notif, player, log, alarm.WithBus(bus))
	timer := focus.New(
		focus.WithChime(player, cfg.Timer.Chime),
		focus.WithBus(bus),
		focus.WithLogger(log),
	)
	timer.SetSoundEnabled(cfg.TimerSound())

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		persist: persist,
		tasks:   tasks,
		editor:  editor,
		notif:   notif,
		alarms:  alarms,
		timer:   timer,
		player:  player,
	}, nil
}

func (a *App) Log() logx.Logger          { return a.log }
func (a *App) Bus() eventbus.Bus         { return a.bus }
func (a *App) Tasks() *task.Store        { return a.tasks }
func (a *App) Editor() *task.DraftEditor { return a.editor }
func (a *App) Timer() *focus.Timer       { return a.timer }
func (a *App) Alarms() *alarm.Engine     { return a.alarms }
func (a *App) Config() *config.Config    { return a.cfgm.Get() }

// Done is closed when the app supervisor stops (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the long-lived parts: notification delivery, the alarm scan,
// config hot reload and the event fan-out.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	sctx := a.sup.Context()

	a.notif.Start(sctx)
	// Tasks stored by an earlier run or a one-shot command never passed
	// through the event fan-out below.
	a.alarms.PrimePermission(sctx)
	a.alarms.Start(sctx)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.fanout", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.handleEvent(c, e)
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithPublishFirstError(false))
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.apply", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, last, cfg)
				last = cfg
			}
		}
	})

	a.log.Info("engine started", logx.Int("tasks", a.tasks.Len()))
	return nil
}

func (a *App) handleEvent(ctx context.Context, e eventbus.Event) {
	a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	switch e.Type {
	case eventbus.TaskCreated, eventbus.TaskOverwritten:
		if t, ok := e.Data.(task.Task); ok {
			a.alarms.OnTaskCreated(ctx, t)
		}
	}
	switch e.Type {
	case eventbus.TaskCreated, eventbus.TaskOverwritten, eventbus.TaskToggled, eventbus.TaskDeleted:
		// Keep the visible conflicts of an in-progress draft current.
		if _, scheduled := a.editor.Draft().Interval(); scheduled {
			a.editor.Refresh()
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, cfg *config.Config) {
	sections, fields := config.Summarize(oldCfg, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload had no effective changes")
		return
	}
	a.log.Info("config applied", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
	eventbus.Publish(a.bus, eventbus.ConfigReloaded, sections)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(cfg))
		case "alarm":
			a.alarms.Apply(ctx, mapAlarmConfig(cfg))
		case "timer":
			a.timer.SetSoundEnabled(cfg.TimerSound())
		case "notifier":
			a.notif.Apply(mapNotifierConfig(cfg))
			if oldCfg.Notifier.Sink != cfg.Notifier.Sink || oldCfg.Notifier.Telegram != cfg.Notifier.Telegram {
				a.log.Warn("notifier sink changed; restart required")
			}
		case "storage", "draft", "chime":
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}
}

// Stop cancels every background activity and releases resources, bounded
// by ctx.
func (a *App) Stop(ctx context.Context) error {
	a.alarms.Stop()
	a.timer.Close()
	a.editor.Close()

	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	a.notif.Stop(ctx)
	if w, ok := a.player.(interface{ Wait() }); ok {
		w.Wait()
	}
	if err := a.persist.Close(); err != nil {
		errs = append(errs, err)
	}
	a.log.Debug("engine stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

// Close releases resources for one-shot use without Start.
func (a *App) Close() error {
	return a.Stop(context.Background())
}
