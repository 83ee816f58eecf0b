package config

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"  warn  ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := ParseLogLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseLogLevel_Unknown(t *testing.T) {
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestReplaceLogLevelNames_Trace(t *testing.T) {
	a := ReplaceLogLevelNames(nil, slog.Attr{
		Key:   slog.LevelKey,
		Value: slog.AnyValue(LevelTrace),
	})
	if got := a.Value.String(); got != "TRACE" {
		t.Errorf("trace level rendered as %q, want TRACE", got)
	}

	a = ReplaceLogLevelNames(nil, slog.Attr{
		Key:   slog.LevelKey,
		Value: slog.AnyValue(slog.LevelInfo),
	})
	if got := a.Value.Any().(slog.Level); got != slog.LevelInfo {
		t.Errorf("info level rewritten to %v", got)
	}
}
