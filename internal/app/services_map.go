package app

import (
	"zenflow/internal/alarm"
	"zenflow/internal/chime"
	"zenflow/internal/config"
	"zenflow/internal/notify"
	logx "zenflow/pkg/logx"
)

type logConfig = logx.Config

func mapNotifierConfig(cfg *config.Config) notify.Config {
	n := cfg.Notifier
	return notify.Config{
		Enabled:     cfg.NotifierEnabled(),
		QueueSize:   n.QueueSize,
		RatePerSec:  n.RatePerSec,
		RetryMax:    n.RetryMax,
		DedupWindow: cfg.DedupWindow(),
	}
}

func mapSinkConfig(cfg *config.Config) notify.SinkConfig {
	return notify.SinkConfig{
		Kind:    cfg.Notifier.Sink,
		AppName: "zenflow",
		Telegram: notify.TelegramConfig{
			Token:  cfg.Notifier.Telegram.Token,
			ChatID: cfg.Notifier.Telegram.ChatID,
		},
	}
}

func mapAlarmConfig(cfg *config.Config) alarm.Config {
	return alarm.Config{
		Interval: cfg.ScanInterval(),
		Location: cfg.Location(),
		SoundRef: cfg.Alarm.Chime,
	}
}

func mapChimeConfig(cfg *config.Config) chime.Config {
	return chime.Config{
		Kind:    cfg.Chime.Kind,
		Command: cfg.Chime.Command,
		Timeout: cfg.ChimeTimeout(),
	}
}
