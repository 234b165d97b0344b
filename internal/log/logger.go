package log

import (
	"fmt"
	"strings"

	"github.com/vaultarc/vaultarc/internal/config"
)

// Init builds the process-wide Logger from cfg, selecting the slog or
// logrus backend per cfg.Backend. Only the first call takes effect.
func Init(cfg config.LogConfig) error {
	var initErr error
	once.Do(func() {
		switch strings.ToLower(cfg.Backend) {
		case "", "slog":
			logger, initErr = newSlogLogger(cfg)
		case "logrus":
			logger, initErr = newLogrusLogger(cfg)
		default:
			initErr = fmt.Errorf("log: unsupported backend %q", cfg.Backend)
		}
	})
	return initErr
}

func outputWriter(cfg config.LogConfig) *MultiWriter {
	mw := NewMultiWriter()
	if !cfg.File.Enabled {
		return mw
	}
	mw.AddFileAppender(FileAppenderOpt{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	})
	return mw
}
