package logger

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"bogus":    zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected non-nil logger for nil input")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Fatal("expected the same logger back")
	}
	// must not panic
	OrNop(nil).Infow("noop", "k", "v")
}

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get(DebugLevel)
	b := Get(ErrorLevel)
	if a != b {
		t.Fatal("expected Get to return the same instance")
	}
}

func TestNewTo_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewTo(" WARN ", &buf)
	l.Infow("hidden_event")
	l.Warnw("session_expired", "generation", 3)
	_ = l.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden_event") {
		t.Fatalf("info line written at warn level:\n%s", out)
	}
	if !strings.Contains(out, "session_expired") || !strings.Contains(out, "WARN") || !strings.Contains(out, "generation") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
