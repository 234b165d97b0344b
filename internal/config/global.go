// Package config loads the process-wide and per-job configuration
// using viper bound to mapstructure-tagged structs: ADR-style
// section-banner comments grouping related settings, a GlobalConfig
// root and per-concern nested structs.
package config

import "os"

// ─── Global Process Configuration ───

// GlobalConfig is the process-wide static configuration: defaults every
// job inherits unless it overrides them, plus the ambient logging,
// metrics and control-socket settings.
type GlobalConfig struct {
	DataDir    string        `mapstructure:"data_dir"`
	TempDir    string        `mapstructure:"temp_dir"`
	MaxThreads int           `mapstructure:"max_threads"`
	Log        LogConfig     `mapstructure:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Control    ControlConfig `mapstructure:"control"`
}

// ─── Control Plane ───

// ControlConfig names the Unix Domain Socket the running operation
// listens on for pause/resume/abort/status commands.
type ControlConfig struct {
	Socket string `mapstructure:"socket"`
}

// ─── Metrics ───

// MetricsConfig is carried as an ambient concern even though the
// archive format's own Non-goals exclude an observability subsystem
// proper -- it only
// configures whether a running job's status (internal/metrics, fed by
// the job's Status()) is also exposed as a Prometheus-style text
// endpoint, never a full metrics pipeline.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ─── Logging ───

// LogConfig selects and configures the logging backend (see
// internal/log for the slog/logrus dual-backend split).
type LogConfig struct {
	Level    string          `mapstructure:"level"`
	Backend  string          `mapstructure:"backend"` // "slog" (default) | "logrus"
	Format   string          `mapstructure:"format"`  // "json" | "text"
	File     FileAppenderCfg `mapstructure:"file"`
}

// FileAppenderCfg configures lumberjack-backed file rotation.
type FileAppenderCfg struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func defaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DataDir:    ".",
		TempDir:    os.TempDir(),
		MaxThreads: 0, // 0 means runtime.NumCPU()
		Log: LogConfig{
			Level:   "info",
			Backend: "slog",
			Format:  "text",
		},
		Control: ControlConfig{
			Socket: defaultSocketPath(),
		},
	}
}
