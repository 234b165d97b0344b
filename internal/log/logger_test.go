package log

import (
	"testing"

	"github.com/vaultarc/vaultarc/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "bogus": false}
	for level, wantOK := range cases {
		_, err := parseLevel(level)
		if (err == nil) != wantOK {
			t.Errorf("parseLevel(%q): err=%v, want ok=%v", level, err, wantOK)
		}
	}
}

func TestNewSlogLoggerBuildsWorkingLogger(t *testing.T) {
	l, err := newSlogLogger(config.LogConfig{Level: "info", Format: "text"})
	if err != nil {
		t.Fatalf("newSlogLogger: %v", err)
	}
	l.Info("hello")
	l.WithField("k", "v").Info("with field")
	if !l.IsInfoEnabled() {
		t.Error("expected info level enabled")
	}
}

func TestNewLogrusLoggerBuildsWorkingLogger(t *testing.T) {
	l, err := newLogrusLogger(config.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("newLogrusLogger: %v", err)
	}
	l.Debug("hello")
	if !l.IsDebugEnabled() {
		t.Error("expected debug level enabled")
	}
}
