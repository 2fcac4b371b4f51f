package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the on-disk configuration. Every section is optional; missing
// fields fall back to the defaults documented on each accessor.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Alarm    AlarmConfig    `json:"alarm"`
	Draft    DraftConfig    `json:"draft"`
	Timer    TimerConfig    `json:"timer"`
	Notifier NotifierConfig `json:"notifier"`
	Chime    ChimeConfig    `json:"chime"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver: memory, file (Path is a
// directory) or sqlite (Path is the database file). An empty Path puts the
// data under the user config dir.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type AlarmConfig struct {
	ScanInterval string `json:"scan_interval,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Chime        string `json:"chime,omitempty"`
}

type DraftConfig struct {
	QuietPeriod string `json:"quiet_period,omitempty"`
}

type TimerConfig struct {
	// Sound is a pointer so an explicit false can be told apart from omitted.
	Sound *bool  `json:"sound,omitempty"`
	Chime string `json:"chime,omitempty"`
}

type NotifierConfig struct {
	Enabled     *bool          `json:"enabled,omitempty"`
	Sink        string         `json:"sink,omitempty"`
	QueueSize   int            `json:"queue_size,omitempty"`
	RatePerSec  float64        `json:"rate_per_sec,omitempty"`
	RetryMax    int            `json:"retry_max,omitempty"`
	DedupWindow string         `json:"dedup_window,omitempty"`
	Telegram    TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type ChimeConfig struct {
	Kind    string `json:"kind,omitempty"`
	Command string `json:"command,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

const (
	DefaultScanInterval = 10 * time.Second
	DefaultQuietPeriod  = 500 * time.Millisecond
	DefaultDedupWindow  = time.Minute
)

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file"},
		Chime:   ChimeConfig{Kind: "bell"},
	}
}

// ScanInterval defaults to 10s.
func (c *Config) ScanInterval() time.Duration {
	d, _ := ParseDurationOrDefault("alarm.scan_interval", c.Alarm.ScanInterval, DefaultScanInterval)
	return d
}

// Location resolves alarm.timezone, defaulting to the local zone.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Alarm.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// QuietPeriod defaults to 500ms.
func (c *Config) QuietPeriod() time.Duration {
	d, _ := ParseDurationOrDefault("draft.quiet_period", c.Draft.QuietPeriod, DefaultQuietPeriod)
	return d
}

func (c *Config) TimerSound() bool { return c.Timer.Sound == nil || *c.Timer.Sound }

// NotifierEnabled defaults to true.
func (c *Config) NotifierEnabled() bool { return c.Notifier.Enabled == nil || *c.Notifier.Enabled }

func (c *Config) DedupWindow() time.Duration {
	d, _ := ParseDurationOrDefault("notifier.dedup_window", c.Notifier.DedupWindow, DefaultDedupWindow)
	return d
}

func (c *Config) BusyTimeout() time.Duration {
	d, _ := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	return d
}

func (c *Config) ChimeTimeout() time.Duration {
	d, _ := ParseDurationField("chime.timeout", c.Chime.Timeout)
	return d
}

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrUnknownSink   = errors.New("unknown notifier sink")
	ErrUnknownChime  = errors.New("unknown chime kind")
)

// Validate reports every problem in the config at once.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	check("storage.busy_timeout", c.Storage.BusyTimeout)
	check("alarm.scan_interval", c.Alarm.ScanInterval)
	check("draft.quiet_period", c.Draft.QuietPeriod)
	check("notifier.dedup_window", c.Notifier.DedupWindow)
	check("chime.timeout", c.Chime.Timeout)

	if d, err := ParseDurationField("alarm.scan_interval", c.Alarm.ScanInterval); err == nil && d > 0 && d < time.Second {
		errs = append(errs, fmt.Errorf("alarm.scan_interval: must be at least 1s"))
	}
	if tz := strings.TrimSpace(c.Alarm.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("alarm.timezone: %w", err))
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "memory", "none", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: %w %q", ErrUnknownDriver, c.Storage.Driver))
	}
	switch strings.ToLower(strings.TrimSpace(c.Notifier.Sink)) {
	case "", "log", "desktop":
	case "telegram":
		if strings.TrimSpace(c.Notifier.Telegram.Token) == "" || c.Notifier.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("notifier.telegram: token and chat_id are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("notifier.sink: %w %q", ErrUnknownSink, c.Notifier.Sink))
	}
	switch strings.ToLower(strings.TrimSpace(c.Chime.Kind)) {
	case "", "none", "bell", "command":
	default:
		errs = append(errs, fmt.Errorf("chime.kind: %w %q", ErrUnknownChime, c.Chime.Kind))
	}
	if c.Notifier.QueueSize < 0 || c.Notifier.RatePerSec < 0 || c.Notifier.RetryMax < 0 {
		errs = append(errs, errors.New("notifier: queue_size, rate_per_sec and retry_max must be >= 0"))
	}
	return errors.Join(errs...)
}
