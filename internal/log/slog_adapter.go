package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vaultarc/vaultarc/internal/config"
)

type slogAdapter struct {
	l *slog.Logger
}

func newSlogLogger(cfg config.LogConfig) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stdout
	if cfg.File.Enabled {
		w = io.MultiWriter(os.Stdout, outputWriter(cfg))
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("log: unsupported format %q", cfg.Format)
	}

	return &slogAdapter{l: slog.New(handler)}, nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log: unknown level %q", levelStr)
	}
}

func (s *slogAdapter) Print(args ...interface{})                 { s.l.Info(fmt.Sprint(args...)) }
func (s *slogAdapter) Printf(format string, args ...interface{}) { s.l.Info(fmt.Sprintf(format, args...)) }

func (s *slogAdapter) Trace(args ...interface{})                 { s.l.Debug(fmt.Sprint(args...)) }
func (s *slogAdapter) Tracef(format string, args ...interface{}) { s.l.Debug(fmt.Sprintf(format, args...)) }

func (s *slogAdapter) Debug(args ...interface{})                 { s.l.Debug(fmt.Sprint(args...)) }
func (s *slogAdapter) Debugf(format string, args ...interface{}) { s.l.Debug(fmt.Sprintf(format, args...)) }

func (s *slogAdapter) Info(args ...interface{})                 { s.l.Info(fmt.Sprint(args...)) }
func (s *slogAdapter) Infof(format string, args ...interface{}) { s.l.Info(fmt.Sprintf(format, args...)) }

func (s *slogAdapter) Warn(args ...interface{})                 { s.l.Warn(fmt.Sprint(args...)) }
func (s *slogAdapter) Warnf(format string, args ...interface{}) { s.l.Warn(fmt.Sprintf(format, args...)) }

func (s *slogAdapter) Error(args ...interface{})                 { s.l.Error(fmt.Sprint(args...)) }
func (s *slogAdapter) Errorf(format string, args ...interface{}) { s.l.Error(fmt.Sprintf(format, args...)) }

func (s *slogAdapter) Fatal(args ...interface{}) {
	s.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
func (s *slogAdapter) Fatalf(format string, args ...interface{}) {
	s.l.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (s *slogAdapter) Panic(args ...interface{}) {
	msg := fmt.Sprint(args...)
	s.l.Error(msg)
	panic(msg)
}
func (s *slogAdapter) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.l.Error(msg)
	panic(msg)
}

func (s *slogAdapter) WithField(field string, value interface{}) Logger {
	return &slogAdapter{l: s.l.With(field, value)}
}

func (s *slogAdapter) WithFields(fields map[string]interface{}) Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &slogAdapter{l: s.l.With(args...)}
}

func (s *slogAdapter) WithError(err error) Logger {
	return &slogAdapter{l: s.l.With("error", err)}
}

func (s *slogAdapter) IsTraceEnabled() bool { return s.l.Enabled(context.Background(), slog.LevelDebug) }
func (s *slogAdapter) IsDebugEnabled() bool { return s.l.Enabled(context.Background(), slog.LevelDebug) }
func (s *slogAdapter) IsInfoEnabled() bool  { return s.l.Enabled(context.Background(), slog.LevelInfo) }
