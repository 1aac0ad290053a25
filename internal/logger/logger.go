// Package logger holds the process-wide slog logger used by the sctag CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the global logger instance. It discards all output until Init is called.
var L = slog.New(slog.DiscardHandler)

const (
	logPrefix     = "sctag-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Text output destination. Ignored when LogDir is set. Default: os.Stderr
	LogDir  string     // Directory for daily JSON log files
	Level   slog.Level // Minimum level. Default: LevelInfo
}

// Init configures logging. Call from main before any log calls. It returns
// a close function for the log file, if one was opened.
func Init(opts Options) (func() error, error) {
	noop := func() error { return nil }
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return noop, nil
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.LogDir == "" {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		L = slog.New(slog.NewTextHandler(w, hopts))
		return noop, nil
	}

	if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
		return noop, err
	}
	cleanOldLogs(opts.LogDir, time.Now())

	filename := filepath.Join(opts.LogDir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return noop, err
	}
	L = slog.New(slog.NewJSONHandler(f, hopts))
	return f.Close, nil
}

// cleanOldLogs removes log files older than retentionDays. Errors are ignored.
func cleanOldLogs(logDir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		// sctag-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}
