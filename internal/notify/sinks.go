package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	tele "gopkg.in/telebot.v4"

	logx "zenflow/pkg/logx"
)

// SinkConfig selects and configures the delivery destination.
type SinkConfig struct {
	Kind     string // log | desktop | telegram
	AppName  string
	Telegram TelegramConfig
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

// NewSink builds the sink named by cfg.Kind. An empty kind means log.
func NewSink(cfg SinkConfig, log logx.Logger) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "log":
		return NewLogSink(log), nil
	case "desktop":
		return NewDesktop(cfg.AppName), nil
	case "telegram":
		return NewTelegram(cfg.Telegram)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Kind)
	}
}

// LogSink writes notifications to the log. It always grants permission.
type LogSink struct{ log logx.Logger }

func NewLogSink(log logx.Logger) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log}
}

func (l *LogSink) Name() string                { return "log" }
func (l *LogSink) Probe(context.Context) error { return nil }
func (l *LogSink) Close() error                { return nil }

func (l *LogSink) Send(_ context.Context, m Message) error {
	l.log.Info(m.Title, logx.String("body", m.Body))
	return nil
}

const (
	fdoName  = "org.freedesktop.Notifications"
	fdoPath  = "/org/freedesktop/Notifications"
	fdoIface = "org.freedesktop.Notifications"
)

// Desktop posts freedesktop notifications over the session bus.
type Desktop struct {
	appName string

	mu   sync.Mutex
	conn *dbus.Conn
}

func NewDesktop(appName string) *Desktop {
	if appName == "" {
		appName = "zenflow"
	}
	return &Desktop{appName: appName}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) object() (dbus.BusObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("session bus: %w", err)
		}
		d.conn = conn
	}
	return d.conn.Object(fdoName, dbus.ObjectPath(fdoPath)), nil
}

// Probe asks the notification server to identify itself.
func (d *Desktop) Probe(ctx context.Context) error {
	obj, err := d.object()
	if err != nil {
		return err
	}
	var name, vendor, version, spec string
	call := obj.CallWithContext(ctx, fdoIface+".GetServerInformation", 0)
	if call.Err != nil {
		return fmt.Errorf("notification server: %w", call.Err)
	}
	return call.Store(&name, &vendor, &version, &spec)
}

func (d *Desktop) Send(ctx context.Context, m Message) error {
	obj, err := d.object()
	if err != nil {
		return err
	}
	call := obj.CallWithContext(ctx, fdoIface+".Notify", 0,
		d.appName, uint32(0), "", m.Title, m.Body,
		[]string{}, map[string]dbus.Variant{}, int32(-1))
	return call.Err
}

func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// Telegram sends notifications to one chat through a bot.
type Telegram struct {
	cfg TelegramConfig

	mu  sync.Mutex
	bot *tele.Bot
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("%w: telegram needs token and chat_id", ErrSinkNotConfig)
	}
	return &Telegram{cfg: cfg}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// client authenticates the token on first use.
func (t *Telegram) client() (*tele.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  t.cfg.Token,
		Client: &http.Client{Timeout: 8 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	t.bot = b
	return b, nil
}

func (t *Telegram) Probe(context.Context) error {
	_, err := t.client()
	return err
}

func (t *Telegram) Send(ctx context.Context, m Message) error {
	b, err := t.client()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = b.Send(tele.ChatID(t.cfg.ChatID), m.Title+"\n"+m.Body)
	return err
}

func (t *Telegram) Close() error { return nil }
