package logging

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vietdv277/clusterbench/pkg/types"
)

func TestNewLoggerLevel(t *testing.T) {
	l := NewLogger("debug", "json")
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", l.Formatter)
	}

	l = NewLogger("bogus", "text")
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level fallback, got %s", l.GetLevel())
	}
}

func TestLogEvent(t *testing.T) {
	base, hook := test.NewNullLogger()
	l := &Logger{Logger: base}

	l.LogEvent(types.Event{Phase: "target-groups", Kind: types.KindTargetGroup, Target: "cluster1", Result: "created"})
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.InfoLevel {
		t.Fatalf("expected info entry, got %+v", entry)
	}
	if entry.Data["kind"] != "target-group" || entry.Data["target"] != "cluster1" {
		t.Fatalf("unexpected fields %v", entry.Data)
	}

	l.LogEvent(types.Event{Phase: "listener", Err: errors.New("boom")})
	entry = hook.LastEntry()
	if entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected error entry, got %s", entry.Level)
	}
	if _, ok := entry.Data[logrus.ErrorKey]; !ok {
		t.Fatalf("expected error field, got %v", entry.Data)
	}
}
