package config

import (
	"reflect"

	logx "zenflow/pkg/logx"
)

// Summarize lists the sections that differ between two configs, with log
// fields describing the new values. Secrets are never included.
func Summarize(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled))
	}
	if oldCfg.Storage != newCfg.Storage {
		// Storage is opened once; changes apply on restart.
		changed = append(changed, "storage")
	}
	if oldCfg.Alarm != newCfg.Alarm {
		changed = append(changed, "alarm")
		fields = append(fields,
			logx.Duration("alarm.scan_interval", newCfg.ScanInterval()),
			logx.String("alarm.timezone", newCfg.Location().String()))
	}
	if oldCfg.Draft != newCfg.Draft {
		changed = append(changed, "draft")
	}
	if oldCfg.TimerSound() != newCfg.TimerSound() || oldCfg.Timer.Chime != newCfg.Timer.Chime {
		changed = append(changed, "timer")
		fields = append(fields, logx.Bool("timer.sound", newCfg.TimerSound()))
	}
	on, nn := oldCfg.Notifier, newCfg.Notifier
	if oldCfg.NotifierEnabled() != newCfg.NotifierEnabled() || on.Sink != nn.Sink ||
		on.QueueSize != nn.QueueSize || on.RatePerSec != nn.RatePerSec || on.RetryMax != nn.RetryMax ||
		on.DedupWindow != nn.DedupWindow || on.Telegram != nn.Telegram {
		changed = append(changed, "notifier")
		fields = append(fields,
			logx.Bool("notifier.enabled", newCfg.NotifierEnabled()),
			logx.String("notifier.sink", nn.Sink),
			logx.Bool("notifier.telegram_token_set", nn.Telegram.Token != ""))
	}
	if oldCfg.Chime != newCfg.Chime {
		changed = append(changed, "chime")
		fields = append(fields, logx.String("chime.kind", newCfg.Chime.Kind))
	}
	return changed, fields
}
