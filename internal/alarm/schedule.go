package alarm

import (
	"time"

	"github.com/robfig/cron/v3"
	logx "zenflow/pkg/logx"
)

// immediateSchedule is due as soon as the cron starts, then follows base.
type immediateSchedule struct {
	base cron.Schedule
	used bool
}

func startNow(base cron.Schedule) cron.Schedule {
	return &immediateSchedule{base: base}
}

// Next is only called from the cron run loop, so used needs no lock.
func (s *immediateSchedule) Next(t time.Time) time.Time {
	if !s.used {
		s.used = true
		return t
	}
	return s.base.Next(t)
}

// cronLogger routes cron's own diagnostics into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", keysAndValues))
}
