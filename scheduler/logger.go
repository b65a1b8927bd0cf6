package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger routes cron's internal logging to slog
type cronLogger struct {
	log *slog.Logger
}

// NewCronLogger adapts l to the cron.Logger interface. Cron's info logs are
// chatty, so they go to debug.
func NewCronLogger(l *slog.Logger) cron.Logger {
	return cronLogger{log: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
