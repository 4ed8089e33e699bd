package logging

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vietdv277/clusterbench/pkg/types"
)

// Logger wraps logrus with domain helpers
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a logger with the given level and format (text or json)
func NewLogger(level, format string) *Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &Logger{Logger: logger}
}

// Discard returns a logger that writes nothing
func Discard() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{Logger: logger}
}

// LogEvent writes a progress event. Failed events are logged at error level.
func (l *Logger) LogEvent(ev types.Event) {
	fields := logrus.Fields{
		"phase": ev.Phase,
	}
	if ev.Kind != "" {
		fields["kind"] = string(ev.Kind)
	}
	if ev.Target != "" {
		fields["target"] = ev.Target
	}
	if ev.Result != "" {
		fields["result"] = ev.Result
	}
	if !ev.At.IsZero() {
		fields["at"] = ev.At.Format(time.RFC3339)
	}

	if ev.Err != nil {
		l.WithFields(fields).WithError(ev.Err).Error("step failed")
		return
	}
	l.WithFields(fields).Info("step completed")
}

// Phase returns an entry scoped to a phase
func (l *Logger) Phase(phase string) *logrus.Entry {
	return l.WithField("phase", phase)
}
